package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/daemon"
	"github.com/adammhaile/elpis/internal/scrobbler"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	daemonLogFile  string
	daemonLogLevel string
	daemonDataDir  string
	daemonFailFast bool
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scrobbling daemon",
	Long: `Run the scrobbling daemon that follows an MPRIS player and scrobbles tracks to Last.fm.

The daemon will:
- Poll the player every second to detect track changes and playback position
- Send a now playing update once 5% of a track has played
- Scrobble tracks that are at least 30 seconds long once half of the track
  or four minutes have played, whichever comes first
- Record every submission outcome in a local history database
- Handle graceful shutdown on SIGINT/SIGTERM, submitting anything still queued

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd user units).`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "Log file path (default: stderr)")
	daemonCmd.Flags().StringVar(&daemonLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	daemonCmd.Flags().StringVar(&daemonDataDir, "data-dir", "", "Data directory for state and history (default: ~/.local/share/elpis)")
	daemonCmd.Flags().StringVar(&playerFlag, "player", "", "MPRIS player to follow (overrides config)")
	daemonCmd.Flags().BoolVar(&daemonFailFast, "fail-fast", false, "Stop each drain at the first failed submission (overrides config)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.LastFM.APIKey == "" || cfg.LastFM.APISecret == "" || cfg.LastFM.SessionKey == "" {
		return fmt.Errorf("Last.fm credentials not configured. Run 'elpis auth' first")
	}
	if cmd.Flags().Changed("fail-fast") {
		cfg.Scrobbler.FailFast = daemonFailFast
	}

	logger := setupLogger(daemonLogFile, daemonLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting elpis daemon")

	dataDir := daemonDataDir
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	logger.Info().Str("data_dir", dataDir).Msg("Using data directory")

	musicClient, err := newPlayer(cfg)
	if err != nil {
		return err
	}

	lfmConfig := cfg.LastFMClientConfig()
	lfmConfig.Logger = sdkLogger{logger: logger.With().Str("component", "lastfm").Logger()}
	scrobblerClient, err := scrobbler.New(lfmConfig)
	if err != nil {
		_ = musicClient.Close()
		return err
	}

	journal, err := openJournal(cfg, dataDir)
	if err != nil {
		// Scrobbling still works without history.
		logger.Warn().Err(err).Msg("History disabled")
		journal = nil
	}

	daemonCfg := daemon.Config{
		PollInterval:     time.Duration(cfg.PollInterval) * time.Second,
		StateFile:        filepath.Join(dataDir, "state.json"),
		DrainInterval:    cfg.DrainInterval(),
		FailFast:         cfg.Scrobbler.FailFast,
		ShutdownTimeout:  10 * time.Second,
		HistoryRetention: cfg.Retention(),
	}

	d, err := daemon.New(daemonCfg, musicClient, scrobblerClient, journal, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	if err := d.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}

// sdkLogger routes the Last.fm client's debug output into zerolog.
type sdkLogger struct {
	logger zerolog.Logger
}

func (l sdkLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
