package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "elpis",
	Short: "Last.fm scrobbler for MPRIS players",
	Long: `elpis is a Last.fm scrobbler for any MPRIS2 media player on Linux.

It runs as a background daemon that follows the player on the session bus,
sends now playing updates, and scrobbles tracks according to Last.fm's
scrobbling rules. Tracks can be loved or banned from the command line.

It also provides a CLI command to query the currently playing track,
useful for displaying in tmux status lines or other status bars.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
