package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adammhaile/elpis/internal/history"
	"github.com/adammhaile/elpis/internal/music"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds daemon configuration
type Config struct {
	PollInterval     time.Duration // How often to sample the player
	StateFile        string        // Path to state persistence file
	DrainInterval    time.Duration // How often the worker drains the queue
	FailFast         bool          // Stop a drain at the first failure
	ShutdownTimeout  time.Duration // Budget for the final drain
	HistoryRetention time.Duration // Journal rows older than this are removed on shutdown
}

// Daemon coordinates the player poller, eligibility tracking and submission.
type Daemon struct {
	config   Config
	client   music.Client
	scrobble *scrobbler.Client
	queue    *scrobbler.Queue
	worker   *scrobbler.Worker
	journal  *history.Journal
	state    *State
	poller   *Poller
	logger   zerolog.Logger
}

// New creates a new Daemon instance. journal may be nil.
func New(cfg Config, musicClient music.Client, scrobbleClient *scrobbler.Client, journal *history.Journal, logger zerolog.Logger) (*Daemon, error) {
	if musicClient == nil || scrobbleClient == nil {
		return nil, fmt.Errorf("daemon: music and scrobble clients are required")
	}

	var recorder scrobbler.Recorder
	if journal != nil {
		recorder = journal
	}

	d := &Daemon{
		config:   cfg,
		client:   musicClient,
		scrobble: scrobbleClient,
		queue:    scrobbleClient.NewQueue(),
		journal:  journal,
		state:    NewState(cfg.StateFile),
		poller:   NewPoller(musicClient, cfg.PollInterval, logger),
		logger:   logger.With().Str("component", "daemon").Logger(),
	}
	d.worker = scrobbler.NewWorker(d.queue, scrobbler.WorkerConfig{
		Interval:        cfg.DrainInterval,
		FailFast:        cfg.FailFast,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Recorder:        recorder,
		OnResult:        d.onResult,
	}, logger)
	return d, nil
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().
		Bool("authenticated", d.scrobble.IsAuthenticated()).
		Msg("Starting daemon")

	if !d.scrobble.IsAuthenticated() {
		d.logger.Warn().Msg("No Last.fm session; submissions will fail until 'elpis auth' is run")
	}

	updates := make(chan TrackUpdate, 10)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.poller.Run(ctx, updates)
	})
	g.Go(func() error {
		return d.worker.Run(ctx)
	})
	g.Go(func() error {
		d.handleUpdates(ctx, updates)
		return ctx.Err()
	})

	err := g.Wait()
	if flushErr := d.state.Flush(); flushErr != nil {
		d.logger.Warn().Err(flushErr).Msg("Failed to flush state")
	}
	d.logger.Info().Int("pending", d.queue.Pending()).Msg("Daemon stopped")
	return err
}

// handleUpdates processes track updates from the poller
func (d *Daemon) handleUpdates(ctx context.Context, updates <-chan TrackUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			if update.Err != nil {
				d.logger.Debug().Err(update.Err).Msg("Track update error")
				continue
			}

			if err := d.handleTrackUpdate(update.Track); err != nil {
				d.logger.Error().Err(err).Msg("Failed to handle track update")
			}
		}
	}
}

// handleTrackUpdate runs one sample through the eligibility tracker and
// enqueues whatever became due.
func (d *Daemon) handleTrackUpdate(track *music.Track) error {
	due, play, err := d.state.Observe(track)
	if err != nil {
		// State file trouble must not stop submissions.
		d.logger.Warn().Err(err).Msg("Failed to persist state")
	}

	if play.Track == nil {
		return nil
	}

	if due.Restarted {
		d.logger.Info().
			Str("track", play.Track.Name).
			Str("artist", play.Track.Artist).
			Dur("duration", play.Track.Duration).
			Str("player", play.Track.Player).
			Msg("Track started")
	}

	kick := false
	if due.NowPlaying {
		if _, err := d.queue.EnqueueNowPlaying(toLastfm(play)); err != nil {
			return fmt.Errorf("failed to enqueue now playing: %w", err)
		}
		kick = true
	}
	if due.Scrobble {
		d.logger.Info().
			Str("track", play.Track.Name).
			Str("artist", play.Track.Artist).
			Dur("position", play.Track.Position).
			Msg("Track reached scrobble point")
		if _, err := d.queue.EnqueueScrobble(toLastfm(play)); err != nil {
			return fmt.Errorf("failed to enqueue scrobble: %w", err)
		}
		kick = true
	}
	if kick {
		d.worker.Kick()
	}
	return nil
}

// onResult keeps the corrected copy of the current track for later
// rating calls.
func (d *Daemon) onResult(r lastfm.Result) {
	base := r.Base()
	if base.Err != nil {
		return
	}
	if d.state.ApplyCorrection(base.Track) {
		d.logger.Info().
			Str("track", base.Track.Track.Track).
			Str("artist", base.Track.Artist).
			Msg("Last.fm corrected track metadata")
	}
}

// Queue exposes the submission queue.
func (d *Daemon) Queue() *scrobbler.Queue {
	return d.queue
}

// Shutdown releases the player connection and the journal.
func (d *Daemon) Shutdown() error {
	d.logger.Info().Msg("Shutting down daemon")

	if err := d.client.Close(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to close player connection")
	}

	if d.journal == nil {
		return nil
	}

	if d.config.HistoryRetention > 0 {
		ctx := context.Background()
		if n, err := d.journal.Cleanup(ctx, d.config.HistoryRetention); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to cleanup history")
		} else if n > 0 {
			d.logger.Debug().Int64("removed", n).Msg("Cleaned up history")
		}
	}

	if err := d.journal.Close(); err != nil {
		return fmt.Errorf("failed to close history: %w", err)
	}
	return nil
}

func toLastfm(play PlayState) lastfm.Track {
	t := trackOf(play.Track)
	t.StartedAt = play.StartedAt
	return t
}

func trackOf(t *music.Track) lastfm.Track {
	return lastfm.Track{
		Artist:      t.Artist,
		Track:       t.Name,
		Album:       t.Album,
		AlbumArtist: t.AlbumArtist,
		TrackNumber: t.TrackNumber,
		MBID:        t.MBID,
		Duration:    t.Duration,
	}
}
