package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adammhaile/elpis/pkg/lastfm"
)

//go:generate mockgen -destination=mocks/submitter_mock.go -package=mocks github.com/adammhaile/elpis/internal/scrobbler Submitter

// Submitter sends single now playing and scrobble calls.
// *lastfm.ScrobbleService satisfies it.
type Submitter interface {
	UpdateNowPlaying(ctx context.Context, track lastfm.Track) (*lastfm.NowPlayingResponse, error)
	Scrobble(ctx context.Context, track lastfm.Track) (*lastfm.ScrobbleResponse, error)
}

// Lane selects one of the two queues.
type Lane int

const (
	LaneNowPlaying Lane = iota
	LaneScrobble
)

func (l Lane) String() string {
	if l == LaneNowPlaying {
		return "now_playing"
	}
	return "scrobble"
}

// Entry is one queued submission.
type Entry struct {
	Lane     Lane
	Seq      uint64
	Track    lastfm.Track
	Enqueued time.Time
}

// ErrDrainInProgress is returned by Drain when another drain is running.
var ErrDrainInProgress = errors.New("scrobbler: drain already in progress")

// DrainOptions controls a single drain.
type DrainOptions struct {
	// FailFast stops the drain at the first failed item. The failed item
	// is not put back; items behind it stay queued.
	FailFast bool
}

// DrainError is returned by a fail-fast drain.
type DrainError struct {
	Entry Entry
	Err   error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("scrobbler: %s #%d failed: %v", e.Entry.Lane, e.Entry.Seq, e.Err)
}

func (e *DrainError) Unwrap() error {
	return e.Err
}

// Queue holds pending submissions in memory, one FIFO per lane. The now
// playing lane is always drained before the scrobble lane.
//
// Enqueue never blocks on I/O. Drain pops each entry before submitting
// it, so an entry is sent at most once.
type Queue struct {
	submitter Submitter
	now       func() time.Time

	mu    sync.Mutex
	lanes [2][]Entry
	seq   uint64

	draining atomic.Bool
}

// NewQueue creates an empty queue that submits through s.
func NewQueue(s Submitter) *Queue {
	return &Queue{submitter: s, now: time.Now}
}

// EnqueueNowPlaying appends a now playing update.
func (q *Queue) EnqueueNowPlaying(track lastfm.Track) (Entry, error) {
	if err := lastfm.ValidateTrack(track); err != nil {
		return Entry{}, err
	}
	return q.push(LaneNowPlaying, track), nil
}

// EnqueueScrobble appends a scrobble. The track must carry StartedAt.
func (q *Queue) EnqueueScrobble(track lastfm.Track) (Entry, error) {
	if err := lastfm.ValidateTrack(track); err != nil {
		return Entry{}, err
	}
	if track.StartedAt.IsZero() {
		return Entry{}, &lastfm.ArgumentError{Field: "started_at", Err: lastfm.ErrMissingField}
	}
	return q.push(LaneScrobble, track), nil
}

func (q *Queue) push(lane Lane, track lastfm.Track) Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	e := Entry{Lane: lane, Seq: q.seq, Track: track, Enqueued: q.now()}
	q.lanes[lane] = append(q.lanes[lane], e)
	return e
}

// pop removes the next entry, now playing first.
func (q *Queue) pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for lane := range q.lanes {
		if len(q.lanes[lane]) == 0 {
			continue
		}
		e := q.lanes[lane][0]
		q.lanes[lane][0] = Entry{}
		q.lanes[lane] = q.lanes[lane][1:]
		return e, true
	}
	return Entry{}, false
}

// Len returns the number of entries waiting in lane.
func (q *Queue) Len(lane Lane) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[lane])
}

// Pending returns the number of entries waiting in both lanes.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[LaneNowPlaying]) + len(q.lanes[LaneScrobble])
}

// Drain submits queued entries one at a time until both lanes are empty,
// the context is done, or (with FailFast) an entry fails. Every entry
// taken from the queue yields exactly one Result, in submission order;
// failures are recorded on the Result rather than returned, unless
// FailFast is set.
func (q *Queue) Drain(ctx context.Context, opts DrainOptions) ([]lastfm.Result, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	defer q.draining.Store(false)

	var results []lastfm.Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		e, ok := q.pop()
		if !ok {
			return results, nil
		}

		res, err := q.submit(ctx, e)
		results = append(results, res)
		if err != nil && opts.FailFast {
			return results, &DrainError{Entry: e, Err: err}
		}
	}
}

func (q *Queue) submit(ctx context.Context, e Entry) (lastfm.Result, error) {
	switch e.Lane {
	case LaneNowPlaying:
		resp, err := q.submitter.UpdateNowPlaying(ctx, e.Track)
		if resp == nil {
			resp = &lastfm.NowPlayingResponse{}
			resp.Track.Track = e.Track
			if err != nil {
				resp.Fail(err)
			}
		}
		return resp, err

	default:
		var resp *lastfm.ScrobbleResponse
		err := lastfm.ValidateScrobble(e.Track, q.now())
		if err == nil {
			resp, err = q.submitter.Scrobble(ctx, e.Track)
		}
		if resp == nil {
			resp = &lastfm.ScrobbleResponse{}
			resp.Track.Track = e.Track
			if err != nil {
				resp.Fail(err)
			}
		}
		return resp, err
	}
}
