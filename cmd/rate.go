package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/daemon"
	"github.com/adammhaile/elpis/internal/music"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/spf13/cobra"
)

// rateAction is one rating command as a change between two ratings. from is
// assumed only when the daemon has no recorded rating for the track.
type rateAction struct {
	use, short string
	from, to   scrobbler.Rating
}

var rateActions = []rateAction{
	{"love", "Love the current track on Last.fm", scrobbler.RatingNone, scrobbler.RatingLove},
	{"unlove", "Remove the love from the current track", scrobbler.RatingLove, scrobbler.RatingNone},
	{"ban", "Ban the current track on Last.fm", scrobbler.RatingNone, scrobbler.RatingBan},
	{"unban", "Remove the ban from the current track", scrobbler.RatingBan, scrobbler.RatingNone},
}

func init() {
	for _, a := range rateActions {
		c := &cobra.Command{
			Use:   a.use,
			Short: a.short,
			Long: a.short + `.

The track is taken from the MPRIS player unless --artist and --track are
given. If the daemon is tracking the same play, Last.fm's corrected names
and the play's current rating are used. The outcome is recorded in the
submission history.`,
			Args: cobra.NoArgs,
			RunE: rateRunner(a),
		}
		c.Flags().String("artist", "", "Artist name (default: the playing track)")
		c.Flags().String("track", "", "Track name (default: the playing track)")
		c.Flags().String("album", "", "Album name")
		c.Flags().String("player", "", "MPRIS player to query (overrides config)")
		c.Flags().String("data-dir", "", "Data directory for state and history (default: ~/.local/share/elpis)")
		rootCmd.AddCommand(c)
	}
}

func rateRunner(a rateAction) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.LastFM.SessionKey == "" {
			return fmt.Errorf("Last.fm credentials not configured. Run 'elpis auth' first")
		}
		if p, _ := cmd.Flags().GetString("player"); p != "" {
			cfg.Player = p
		}

		track, err := rateTarget(ctx, cmd, cfg)
		if err != nil {
			return err
		}

		client, err := scrobbler.New(cfg.LastFMClientConfig())
		if err != nil {
			return err
		}

		dataDir, _ := cmd.Flags().GetString("data-dir")
		if dataDir == "" {
			dataDir = config.GetDataDir()
		}

		var recorder scrobbler.Recorder
		if journal, err := openJournal(cfg, dataDir); err == nil {
			defer journal.Close()
			recorder = journal
		}

		sent, err := rateTrack(ctx, client, recorder, filepath.Join(dataDir, "state.json"), track, a)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s - %s\n", a.use, sent.Artist, sent.Track)
		return nil
	}
}

// rateTrack applies a to track and returns the track the calls were sent
// for. recorder may be nil.
func rateTrack(ctx context.Context, client *scrobbler.Client, recorder scrobbler.Recorder, stateFile string, track *music.Track, a rateAction) (lastfm.Track, error) {
	logger := setupLogger("", "warn")
	rater := scrobbler.NewRater(client.Ratings(), recorder, logger)
	_, sent, err := daemon.Rate(ctx, rater, stateFile, track, a.from, a.to, logger)
	return sent, err
}

// rateTarget resolves the track from flags or the player.
func rateTarget(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*music.Track, error) {
	artist, _ := cmd.Flags().GetString("artist")
	name, _ := cmd.Flags().GetString("track")
	album, _ := cmd.Flags().GetString("album")
	if artist != "" || name != "" {
		if artist == "" || name == "" {
			return nil, fmt.Errorf("--artist and --track must be given together")
		}
		return &music.Track{Artist: artist, Name: name, Album: album}, nil
	}

	player, err := newPlayer(cfg)
	if err != nil {
		return nil, err
	}
	defer player.Close()

	current, err := player.GetCurrentTrack(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current track: %w", err)
	}
	if current == nil {
		return nil, fmt.Errorf("nothing is playing")
	}
	return current, nil
}
