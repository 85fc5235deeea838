package daemon

import (
	"context"
	"time"

	"github.com/adammhaile/elpis/internal/music"
	"github.com/rs/zerolog"
)

// TrackUpdate is one poll result from the player.
type TrackUpdate struct {
	Track *music.Track // nil when stopped or no player is on the bus
	Err   error
}

// warnAfter is the number of consecutive failed polls before the poller
// logs at warn level instead of debug.
const warnAfter = 5

// Poller samples the player at a fixed interval. Each sample is bounded by
// the interval so a hung player cannot stall the loop.
type Poller struct {
	client   music.Client
	interval time.Duration
	logger   zerolog.Logger

	failures int
}

func NewPoller(client music.Client, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		client:   client,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run samples immediately and then on every tick until ctx is cancelled.
// Failed samples are forwarded as updates with Err set.
func (p *Poller) Run(ctx context.Context, updates chan<- TrackUpdate) error {
	p.logger.Info().Dur("interval", p.interval).Msg("Polling player")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		update := p.sample(ctx)
		select {
		case updates <- update:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) sample(ctx context.Context) TrackUpdate {
	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	track, err := p.client.GetCurrentTrack(ctx)
	if err != nil {
		p.failures++
		ev := p.logger.Debug()
		if p.failures == warnAfter {
			ev = p.logger.Warn()
		}
		ev.Err(err).Int("failures", p.failures).Msg("Player poll failed")
		return TrackUpdate{Err: err}
	}

	if p.failures >= warnAfter {
		p.logger.Info().Int("failures", p.failures).Msg("Player poll recovered")
	}
	p.failures = 0

	if track != nil {
		p.logger.Trace().
			Str("track", track.Name).
			Str("state", track.State.String()).
			Dur("position", track.Position).
			Msg("Poll")
	}
	return TrackUpdate{Track: track}
}
