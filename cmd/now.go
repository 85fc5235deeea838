package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/adammhaile/elpis/internal/config"
	"github.com/adammhaile/elpis/internal/music"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the currently playing track",
	Long: `Query the MPRIS player and display the currently playing track.

The output format can be customized in ~/.config/elpis/config.yaml
using a Go template. Available fields: .Name, .Artist, .Album, .AlbumArtist,
.Duration, .Position, .Player. The "clock" function formats a duration as m:ss.

Exit codes:
  0 - Track is currently playing
  1 - No track playing, paused, or no player on the bus`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().StringVar(&playerFlag, "player", "", "MPRIS player to query (overrides config)")
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if formatFlag, _ := cmd.Flags().GetString("format"); formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	client, err := newPlayer(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	track, err := client.GetCurrentTrack(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current track: %w", err)
	}

	if track == nil || track.State != music.StatePlaying {
		os.Exit(1)
		return nil
	}

	output, err := formatTrack(track, cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	fmt.Println(padToWidth(output, width))
	return nil
}

var templateFuncs = template.FuncMap{
	"clock": clock,
}

// formatTrack applies the template to the track data
func formatTrack(track *music.Track, templateStr string) (string, error) {
	tmpl, err := template.New("output").Funcs(templateFuncs).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

// clock renders d as m:ss.
func clock(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)
	if currentWidth == width {
		return text
	}
	if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	const ellipsis = "..."
	ellipsisWidth := runewidth.StringWidth(ellipsis)
	if width <= ellipsisWidth {
		return runewidth.Truncate(ellipsis, width, "")
	}

	// Wide runes can leave the cut one column short; pad the remainder.
	result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis
	if w := runewidth.StringWidth(result); w < width {
		result += strings.Repeat(" ", width-w)
	}
	return result
}
