package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/history"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent submission outcomes",
	Long: `Show the outcome of recent now playing updates, scrobbles and rating
changes as recorded by the daemon.

Use --failed to list only submissions Last.fm rejected or that never
reached it, and --cleanup to remove rows older than a number of days.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Bool("failed", false, "Only show failed submissions")
	historyCmd.Flags().String("lane", "", "Only show one lane (now_playing, scrobble, track.love, ...)")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of rows (0 for all)")
	historyCmd.Flags().Int("cleanup", 0, "Remove rows older than this many days and exit")
	historyCmd.Flags().String("data-dir", "", "Data directory (default: ~/.local/share/elpis)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir = config.GetDataDir()
	}

	journal, err := openJournal(cfg, dataDir)
	if err != nil {
		return err
	}
	defer journal.Close()

	if days, _ := cmd.Flags().GetInt("cleanup"); days > 0 {
		n, err := journal.Cleanup(ctx, time.Duration(days)*24*time.Hour)
		if err != nil {
			return fmt.Errorf("failed to cleanup history: %w", err)
		}
		fmt.Printf("Removed %s rows\n", humanize.Comma(n))
		return nil
	}

	failed, _ := cmd.Flags().GetBool("failed")
	lane, _ := cmd.Flags().GetString("lane")
	limit, _ := cmd.Flags().GetInt("limit")

	entries, err := journal.Recent(ctx, history.Filter{
		Lane:       lane,
		FailedOnly: failed,
		Limit:      limit,
	})
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No submissions recorded")
		return nil
	}
	renderHistory(os.Stdout, entries)

	total, err := journal.Count(ctx, failed)
	if err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}
	oldest := entries[len(entries)-1].SubmittedAt
	fmt.Printf("\n%d of %s, oldest shown %s\n", len(entries), humanize.Comma(int64(total)), humanize.Time(oldest))
	return nil
}

// openJournal opens the configured history database, defaulting to
// history.db in dataDir.
func openJournal(cfg *config.Config, dataDir string) (*history.Journal, error) {
	path := cfg.History.Path
	if path == "" {
		path = filepath.Join(dataDir, "history.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	journal, err := history.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return journal, nil
}

const trackColumnWidth = 48

// renderHistory writes one aligned row per entry.
func renderHistory(w io.Writer, entries []history.Entry) {
	laneWidth := len("LANE")
	for _, e := range entries {
		if n := runewidth.StringWidth(e.Lane); n > laneWidth {
			laneWidth = n
		}
	}

	fmt.Fprintf(w, "%-16s  %s  %-8s  %s\n", "SUBMITTED", padToWidth("LANE", laneWidth), "RESULT", "TRACK")
	for _, e := range entries {
		result := "ok"
		if !e.OK() {
			result = e.Kind
			if e.ErrorCode > 0 {
				result = fmt.Sprintf("%s (%d)", e.Kind, e.ErrorCode)
			}
		}
		track := padToWidth(e.Artist+" - "+e.Track, trackColumnWidth)
		if e.Corrected {
			track = strings.TrimRight(track, " ") + " *"
		}
		fmt.Fprintf(w, "%-16s  %s  %-8s  %s\n",
			e.SubmittedAt.Local().Format("2006-01-02 15:04"),
			padToWidth(e.Lane, laneWidth),
			result,
			strings.TrimRight(track, " "))
		if !e.OK() && e.Message != "" {
			fmt.Fprintf(w, "%-16s  %s  %s\n", "", strings.Repeat(" ", laneWidth), e.Message)
		}
	}
}
