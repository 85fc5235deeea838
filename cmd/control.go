package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/music"
	"github.com/spf13/cobra"
)

var playerFlag string

// playCmd represents the play command
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback",
	Long:  `Resume playback in the MPRIS player. If paused, starts playing the current track.`,
	RunE:  controlRunner((*music.MPRISClient).Play),
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Long:  `Pause playback in the MPRIS player.`,
	RunE:  controlRunner((*music.MPRISClient).Pause),
}

// playpauseCmd represents the playpause command
var playpauseCmd = &cobra.Command{
	Use:   "playpause",
	Short: "Toggle play/pause",
	Long:  `Toggle between play and pause states. If playing, pauses. If paused, resumes.`,
	RunE:  controlRunner((*music.MPRISClient).PlayPause),
}

// nextCmd represents the next command
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Skip to next track",
	Long:  `Skip to the next track in the player's queue or station.`,
	RunE:  controlRunner((*music.MPRISClient).NextTrack),
}

// prevCmd represents the prev command
var prevCmd = &cobra.Command{
	Use:   "prev",
	Short: "Go to previous track",
	Long:  `Go to the previous track, if the player supports it.`,
	RunE:  controlRunner((*music.MPRISClient).PreviousTrack),
}

func init() {
	for _, c := range []*cobra.Command{playCmd, pauseCmd, playpauseCmd, nextCmd, prevCmd} {
		c.Flags().StringVar(&playerFlag, "player", "", "MPRIS player to control (overrides config)")
		rootCmd.AddCommand(c)
	}
}

// controlRunner builds a RunE that invokes one playback control.
func controlRunner(action func(*music.MPRISClient, context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		client, err := newPlayer(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		return action(client, ctx)
	}
}

// newPlayer connects to the session bus and follows the configured player.
func newPlayer(cfg *config.Config) (*music.MPRISClient, error) {
	conn, err := music.NewStdDBusClient()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	player := cfg.Player
	if playerFlag != "" {
		player = playerFlag
	}
	return music.NewMPRISClient(conn, player), nil
}
