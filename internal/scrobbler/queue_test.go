package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/adammhaile/elpis/internal/scrobbler/mocks"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newMockQueue(t *testing.T, now time.Time) (*Queue, *mocks.MockSubmitter) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sub := mocks.NewMockSubmitter(ctrl)
	q := NewQueue(sub)
	q.now = func() time.Time { return now }
	return q, sub
}

func TestQueue_EnqueueValidation(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, _ := newMockQueue(t, now)

	_, err := q.EnqueueNowPlaying(lastfm.Track{Track: "no artist"})
	require.ErrorIs(t, err, lastfm.ErrMissingField)
	require.Equal(t, lastfm.KindArgumentInvalid, lastfm.KindOf(err))

	_, err = q.EnqueueScrobble(lastfm.Track{Artist: "A"})
	require.Equal(t, lastfm.KindArgumentInvalid, lastfm.KindOf(err))

	_, err = q.EnqueueScrobble(lastfm.Track{Artist: "A", Track: "B", Duration: time.Minute})
	var argErr *lastfm.ArgumentError
	require.True(t, errors.As(err, &argErr))
	require.Equal(t, "started_at", argErr.Field)

	require.Equal(t, 0, q.Pending())

	e, err := q.EnqueueScrobble(playedTrack("Ticker-tape of the Unconscious", now))
	require.NoError(t, err)
	require.Equal(t, LaneScrobble, e.Lane)
	require.Equal(t, uint64(1), e.Seq)
	require.Equal(t, now, e.Enqueued)
	require.Equal(t, 1, q.Len(LaneScrobble))
	require.Equal(t, 0, q.Len(LaneNowPlaying))
}

func TestQueue_DrainOrder(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, sub := newMockQueue(t, now)

	s1 := playedTrack("Brakhage", now)
	n1 := playedTrack("Miss Modular", now)
	s2 := playedTrack("Flower Called Nowhere", now)
	n2 := playedTrack("Rainbo Conversation", now)

	_, err := q.EnqueueScrobble(s1)
	require.NoError(t, err)
	_, err = q.EnqueueNowPlaying(n1)
	require.NoError(t, err)
	_, err = q.EnqueueScrobble(s2)
	require.NoError(t, err)
	_, err = q.EnqueueNowPlaying(n2)
	require.NoError(t, err)

	gomock.InOrder(
		sub.EXPECT().UpdateNowPlaying(gomock.Any(), n1).Return(okNowPlaying(n1), nil),
		sub.EXPECT().UpdateNowPlaying(gomock.Any(), n2).Return(okNowPlaying(n2), nil),
		sub.EXPECT().Scrobble(gomock.Any(), s1).Return(okScrobble(s1), nil),
		sub.EXPECT().Scrobble(gomock.Any(), s2).Return(okScrobble(s2), nil),
	)

	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 4)

	want := []string{n1.Track, n2.Track, s1.Track, s2.Track}
	for i, r := range results {
		require.NoError(t, r.Base().Err)
		require.Equal(t, want[i], r.Base().Track.Track.Track)
	}
	require.IsType(t, &lastfm.NowPlayingResponse{}, results[0])
	require.IsType(t, &lastfm.ScrobbleResponse{}, results[3])
	require.Equal(t, 0, q.Pending())
}

func TestQueue_DrainAtMostOnce(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, sub := newMockQueue(t, now)

	failing := playedTrack("Refractions in the Plastic Pulse", now)
	passing := playedTrack("Prisoner of Mars", now)
	_, err := q.EnqueueScrobble(failing)
	require.NoError(t, err)
	_, err = q.EnqueueScrobble(passing)
	require.NoError(t, err)

	netErr := &lastfm.TransportError{Op: "POST", URL: "fake", Err: errors.New("connection reset")}
	failed := &lastfm.ScrobbleResponse{}
	failed.Track.Track = failing
	failed.Fail(netErr)

	sub.EXPECT().Scrobble(gomock.Any(), failing).Return(failed, netErr).Times(1)
	sub.EXPECT().Scrobble(gomock.Any(), passing).Return(okScrobble(passing), nil).Times(1)

	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, lastfm.KindTransport, lastfm.KindOf(results[0].Base().Err))
	require.Equal(t, lastfm.ErrCodeLocal, results[0].Base().ErrorCode)
	require.NoError(t, results[1].Base().Err)

	// The failed entry is gone; nothing is resubmitted.
	require.Equal(t, 0, q.Pending())
	results, err = q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueue_FailFast(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, sub := newMockQueue(t, now)

	np := playedTrack("Cybele's Reverie", now)
	first := playedTrack("Percolator", now)
	second := playedTrack("Les Yper-Sound", now)
	_, err := q.EnqueueNowPlaying(np)
	require.NoError(t, err)
	firstEntry, err := q.EnqueueScrobble(first)
	require.NoError(t, err)
	_, err = q.EnqueueScrobble(second)
	require.NoError(t, err)

	apiErr := &lastfm.Error{Code: lastfm.ErrCodeInvalidSessionKey, Message: "Invalid session key"}
	rejected := &lastfm.ScrobbleResponse{}
	rejected.Track.Track = first
	rejected.Fail(apiErr)

	sub.EXPECT().UpdateNowPlaying(gomock.Any(), np).Return(okNowPlaying(np), nil)
	sub.EXPECT().Scrobble(gomock.Any(), first).Return(rejected, apiErr)

	results, err := q.Drain(context.Background(), DrainOptions{FailFast: true})
	require.Len(t, results, 2)

	var drainErr *DrainError
	require.True(t, errors.As(err, &drainErr))
	require.Equal(t, firstEntry.Seq, drainErr.Entry.Seq)
	require.ErrorIs(t, err, &lastfm.Error{Code: lastfm.ErrCodeInvalidSessionKey})
	require.Equal(t, lastfm.KindAuthenticationFailure, lastfm.KindOf(err))

	require.Equal(t, 1, q.Len(LaneScrobble), "the entry behind the failure stays queued")
	require.Equal(t, 0, q.Len(LaneNowPlaying))
}

func TestQueue_ShortTrackNeverSent(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, _ := newMockQueue(t, now)

	short := lastfm.Track{Artist: "A", Track: "Interlude", Duration: 20 * time.Second, StartedAt: now.Add(-20 * time.Second)}
	_, err := q.EnqueueScrobble(short)
	require.NoError(t, err)

	// No EXPECT: any call on the mock fails the test.
	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.ErrorIs(t, results[0].Base().Err, lastfm.ErrTrackTooShort)
	require.Equal(t, lastfm.KindArgumentInvalid, lastfm.KindOf(results[0].Base().Err))
	require.Equal(t, short, results[0].Base().Track.Track)
}

func TestQueue_ConcurrentDrain(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, sub := newMockQueue(t, now)

	np := playedTrack("Slow Fast Hazel", now)
	_, err := q.EnqueueNowPlaying(np)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	sub.EXPECT().UpdateNowPlaying(gomock.Any(), np).DoAndReturn(
		func(ctx context.Context, track lastfm.Track) (*lastfm.NowPlayingResponse, error) {
			close(started)
			<-release
			return okNowPlaying(track), nil
		})

	done := make(chan error, 1)
	go func() {
		_, err := q.Drain(context.Background(), DrainOptions{})
		done <- err
	}()

	<-started
	_, err = q.Drain(context.Background(), DrainOptions{})
	require.ErrorIs(t, err, ErrDrainInProgress)

	close(release)
	require.NoError(t, <-done)

	// The guard is released once the first drain returns.
	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestQueue_ConcurrentEnqueue(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, _ := newMockQueue(t, now)

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[uint64]bool)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				track := playedTrack(fmt.Sprintf("track-%d-%d", worker, j), now)
				var e Entry
				var err error
				if j%2 == 0 {
					e, err = q.EnqueueNowPlaying(track)
				} else {
					e, err = q.EnqueueScrobble(track)
				}
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				seen[e.Seq] = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1000, q.Pending())
	require.Equal(t, 500, q.Len(LaneNowPlaying))
	require.Len(t, seen, 1000)
}

func TestQueue_DrainCancelled(t *testing.T) {
	now := time.Date(2026, 5, 1, 21, 0, 0, 0, time.UTC)
	q, _ := newMockQueue(t, now)

	_, err := q.EnqueueNowPlaying(playedTrack("Contronatura", now))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := q.Drain(ctx, DrainOptions{})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
	require.Equal(t, 1, q.Pending())
}

// TestQueue_EndToEnd drives the queue through the real SDK against a
// fake Last.fm: one now playing and one scrobble succeed, then a rerun
// against a revoked session reports code 9.
func TestQueue_EndToEnd(t *testing.T) {
	server := newLastfmServer(t, map[string]string{
		"track.updateNowPlaying": nowPlayingOKXML,
		"track.scrobble":         scrobbleOKXML,
	})
	client, err := New(lastfm.Config{APIKey: "k", APISecret: "s", SessionKey: "sk", BaseURL: server.URL})
	require.NoError(t, err)
	q := client.NewQueue()

	now := time.Now()
	_, err = q.EnqueueNowPlaying(lastfm.Track{Artist: "A", Track: "T", Duration: 200 * time.Second})
	require.NoError(t, err)
	_, err = q.EnqueueScrobble(lastfm.Track{Artist: "A", Track: "T", Duration: 200 * time.Second, StartedAt: now.Add(-150 * time.Second)})
	require.NoError(t, err)

	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Base().Err)
		require.Equal(t, 0, r.Base().ErrorCode)
	}
	require.Equal(t, 1, results[1].(*lastfm.ScrobbleResponse).Accepted)

	server.set("track.scrobble", invalidSessionXML)
	_, err = q.EnqueueScrobble(lastfm.Track{Artist: "A", Track: "T", Duration: 200 * time.Second, StartedAt: now.Add(-150 * time.Second)})
	require.NoError(t, err)

	results, err = q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	base := results[0].Base()
	require.Equal(t, lastfm.ErrCodeInvalidSessionKey, base.ErrorCode)
	require.Equal(t, lastfm.KindAuthenticationFailure, lastfm.KindOf(base.Err))

	require.Equal(t, 1, server.callCount("track.updateNowPlaying"))
	require.Equal(t, 2, server.callCount("track.scrobble"))
	require.Equal(t, 0, q.Pending())
}

// A rejected scrobble does not undo the now playing update sent before it
// in the same drain.
func TestQueue_EndToEndMixedOutcome(t *testing.T) {
	server := newLastfmServer(t, map[string]string{
		"track.updateNowPlaying": nowPlayingOKXML,
		"track.scrobble":         invalidSessionXML,
	})
	client, err := New(lastfm.Config{APIKey: "k", APISecret: "s", SessionKey: "sk", BaseURL: server.URL})
	require.NoError(t, err)
	q := client.NewQueue()

	track := lastfm.Track{Artist: "A", Track: "T", Duration: 200 * time.Second, StartedAt: time.Now().Add(-150 * time.Second)}
	_, err = q.EnqueueScrobble(track)
	require.NoError(t, err)
	_, err = q.EnqueueNowPlaying(track)
	require.NoError(t, err)

	results, err := q.Drain(context.Background(), DrainOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	np, ok := results[0].(*lastfm.NowPlayingResponse)
	require.True(t, ok, "now playing lane drains first")
	require.NoError(t, np.Err)
	require.Equal(t, 0, np.ErrorCode)

	sc, ok := results[1].(*lastfm.ScrobbleResponse)
	require.True(t, ok)
	require.Equal(t, lastfm.ErrCodeInvalidSessionKey, sc.ErrorCode)
	require.Equal(t, lastfm.KindAuthenticationFailure, lastfm.KindOf(sc.Err))

	require.Equal(t, 0, q.Pending())
}
