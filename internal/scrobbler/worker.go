package scrobbler

import (
	"context"
	"errors"
	"time"

	"github.com/adammhaile/elpis/internal/history"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/rs/zerolog"
)

// Recorder receives the outcome of every drained entry.
// *history.Journal satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Interval        time.Duration // How often to drain (default 10s)
	FailFast        bool          // Stop a drain at the first failure
	ShutdownTimeout time.Duration // Budget for the final drain (default 10s)
	Recorder        Recorder      // Optional outcome journal

	// OnResult, if set, sees every result after it is reported. It runs
	// on the worker goroutine.
	OnResult func(lastfm.Result)
}

// Worker is the single consumer of a Queue.
type Worker struct {
	queue  *Queue
	config WorkerConfig
	kick   chan struct{}
	logger zerolog.Logger
}

// NewWorker binds a worker to q.
func NewWorker(q *Queue, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Worker{
		queue:  q,
		config: cfg,
		kick:   make(chan struct{}, 1),
		logger: logger.With().Str("component", "worker").Logger(),
	}
}

// Kick requests a drain without waiting for the next tick.
func (w *Worker) Kick() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Run drains on every tick and kick until ctx is done, then makes one
// last drain with a fresh context bounded by ShutdownTimeout.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if w.queue.Pending() > 0 {
				w.logger.Info().Int("pending", w.queue.Pending()).Msg("Draining queue before shutdown")
				final, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
				w.DrainOnce(final)
				cancel()
			}
			return ctx.Err()
		case <-ticker.C:
			w.DrainOnce(ctx)
		case <-w.kick:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce runs one drain and reports every result.
func (w *Worker) DrainOnce(ctx context.Context) []lastfm.Result {
	if w.queue.Pending() == 0 {
		return nil
	}

	results, err := w.queue.Drain(ctx, DrainOptions{FailFast: w.config.FailFast})
	for _, r := range results {
		w.report(ctx, r)
		if w.config.OnResult != nil {
			w.config.OnResult(r)
		}
	}

	var drainErr *DrainError
	switch {
	case err == nil:
	case errors.Is(err, ErrDrainInProgress):
		w.logger.Debug().Msg("Drain already running")
	case errors.As(err, &drainErr):
		w.logger.Warn().
			Str("lane", drainErr.Entry.Lane.String()).
			Int("pending", w.queue.Pending()).
			Msg("Drain stopped at first failure")
	default:
		w.logger.Warn().Err(err).Int("pending", w.queue.Pending()).Msg("Drain interrupted")
	}
	return results
}

func (w *Worker) report(ctx context.Context, r lastfm.Result) {
	base := r.Base()
	lane := laneOf(r)
	kind := lastfm.KindOf(base.Err)

	switch {
	case base.Err == nil && base.Ignored.Code != 0:
		w.logger.Warn().
			Str("lane", lane).
			Str("track", base.Track.Track.Track).
			Str("artist", base.Track.Artist).
			Int("ignored_code", base.Ignored.Code).
			Str("reason", base.Ignored.Message).
			Msg("Submission ignored by Last.fm")
	case base.Err == nil:
		w.logger.Info().
			Str("lane", lane).
			Str("track", base.Track.Track.Track).
			Str("artist", base.Track.Artist).
			Bool("corrected", base.Track.Corrected()).
			Msg("Submitted successfully")
	default:
		event := w.logger.Warn()
		if !kind.Retryable() {
			event = w.logger.Error()
		}
		event.
			Err(base.Err).
			Str("lane", lane).
			Str("kind", kind.String()).
			Int("code", base.ErrorCode).
			Str("track", base.Track.Track.Track).
			Str("artist", base.Track.Artist).
			Msg("Submission failed")
		switch kind {
		case lastfm.KindAuthenticationFailure:
			w.logger.Error().Msg("Last.fm rejected the session, run 'elpis auth' to re-authorize")
		case lastfm.KindClientBanned:
			w.logger.Error().Msg("Last.fm has suspended this API key")
		case lastfm.KindClockSkew:
			w.logger.Error().Msg("Last.fm rejected the timestamp, check the system clock")
		}
	}

	if w.config.Recorder == nil {
		return
	}
	entry := history.Entry{
		Lane:      lane,
		Artist:    base.Track.Artist,
		Track:     base.Track.Track.Track,
		Album:     base.Track.Album,
		StartedAt: base.Track.StartedAt,
		Kind:      kind.String(),
		ErrorCode: base.ErrorCode,
		Corrected: base.Track.Corrected(),
	}
	if base.Err != nil {
		entry.Message = base.Err.Error()
	} else if base.Ignored.Code != 0 {
		entry.Kind = history.KindIgnored
		entry.ErrorCode = base.Ignored.Code
		entry.Message = base.Ignored.Message
	}
	if _, err := w.config.Recorder.Record(ctx, entry); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to record outcome")
	}
}

func laneOf(r lastfm.Result) string {
	switch v := r.(type) {
	case *lastfm.NowPlayingResponse:
		return LaneNowPlaying.String()
	case *lastfm.ScrobbleResponse:
		return LaneScrobble.String()
	case *lastfm.RatingResponse:
		return v.Method
	default:
		return "unknown"
	}
}
