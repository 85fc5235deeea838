package music

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix     = "org.mpris.MediaPlayer2."
	mprisPath       = "/org/mpris/MediaPlayer2"
	mprisPlayer     = "org.mpris.MediaPlayer2.Player"
	propMetadata    = mprisPlayer + ".Metadata"
	propStatus      = mprisPlayer + ".PlaybackStatus"
	propPosition    = mprisPlayer + ".Position"
	microsecondUnit = time.Microsecond
)

// ErrNoPlayer is returned by controls when no MPRIS player is on the bus.
var ErrNoPlayer = errors.New("music: no MPRIS player found")

// MPRISClient implements Client for any MPRIS2 player on the session bus.
type MPRISClient struct {
	conn      DBusClient
	preferred string
}

// NewMPRISClient creates a client over conn. preferred is a player name
// such as "spotify" or "org.mpris.MediaPlayer2.spotify"; when empty the
// first playing player wins.
func NewMPRISClient(conn DBusClient, preferred string) *MPRISClient {
	if preferred != "" && !strings.HasPrefix(preferred, mprisPrefix) {
		preferred = mprisPrefix + preferred
	}
	return &MPRISClient{conn: conn, preferred: preferred}
}

// Close closes the bus connection.
func (c *MPRISClient) Close() error {
	return c.conn.Close()
}

// players lists MPRIS bus names in a stable order.
func (c *MPRISClient) players(ctx context.Context) ([]string, error) {
	names, err := c.conn.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

// pick returns the player to follow, or "" if there is none.
func (c *MPRISClient) pick(ctx context.Context) (string, error) {
	players, err := c.players(ctx)
	if err != nil || len(players) == 0 {
		return "", err
	}

	if c.preferred != "" {
		for _, p := range players {
			if p == c.preferred || strings.HasPrefix(p, c.preferred+".") {
				return p, nil
			}
		}
		return "", nil
	}

	for _, p := range players {
		if status, err := c.status(ctx, p); err == nil && status == StatePlaying {
			return p, nil
		}
	}
	return players[0], nil
}

func (c *MPRISClient) status(ctx context.Context, player string) (PlayState, error) {
	v, err := c.conn.GetProperty(ctx, player, mprisPath, propStatus)
	if err != nil {
		return StateStopped, fmt.Errorf("failed to read playback status: %w", err)
	}
	s, _ := v.Value().(string)
	switch s {
	case "Playing":
		return StatePlaying, nil
	case "Paused":
		return StatePaused, nil
	default:
		return StateStopped, nil
	}
}

// IsRunning reports whether any MPRIS player (or the preferred one) is on
// the bus.
func (c *MPRISClient) IsRunning(ctx context.Context) (bool, error) {
	p, err := c.pick(ctx)
	return p != "", err
}

// GetCurrentTrack returns the playing or paused track, or nil if there is
// no player, the player is stopped, or it reports no usable metadata.
func (c *MPRISClient) GetCurrentTrack(ctx context.Context) (*Track, error) {
	player, err := c.pick(ctx)
	if err != nil || player == "" {
		return nil, err
	}

	state, err := c.status(ctx, player)
	if err != nil {
		return nil, err
	}
	if state == StateStopped {
		return nil, nil
	}

	v, err := c.conn.GetProperty(ctx, player, mprisPath, propMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	meta, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, nil
	}

	track := parseMetadata(meta)
	if track.Name == "" {
		return nil, nil
	}
	track.State = state
	track.Player = player

	// Some players do not implement Position; treat it as unknown.
	if pv, err := c.conn.GetProperty(ctx, player, mprisPath, propPosition); err == nil {
		if us, ok := asInt64(pv.Value()); ok && us > 0 {
			track.Position = time.Duration(us) * microsecondUnit
		}
	}
	return track, nil
}

// parseMetadata maps the xesam/mpris metadata dictionary onto a Track.
func parseMetadata(meta map[string]dbus.Variant) *Track {
	t := &Track{
		Name:        stringValue(meta["xesam:title"]),
		Artist:      strings.Join(stringsValue(meta["xesam:artist"]), ", "),
		Album:       stringValue(meta["xesam:album"]),
		AlbumArtist: strings.Join(stringsValue(meta["xesam:albumArtist"]), ", "),
	}

	if n, ok := asInt64(meta["xesam:trackNumber"].Value()); ok && n > 0 {
		t.TrackNumber = int(n)
	}
	if us, ok := asInt64(meta["mpris:length"].Value()); ok && us > 0 {
		t.Duration = time.Duration(us) * microsecondUnit
	}
	if ids := stringsValue(meta["xesam:musicBrainzTrackID"]); len(ids) > 0 {
		t.MBID = ids[0]
	}

	switch id := meta["mpris:trackid"].Value().(type) {
	case dbus.ObjectPath:
		t.ID = string(id)
	case string:
		t.ID = id
	}
	if t.ID == "" {
		// Without a player id the metadata itself identifies the track.
		t.ID = t.Artist + "\x00" + t.Name + "\x00" + t.Album
	}
	return t
}

func stringValue(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return strings.TrimSpace(s)
}

func stringsValue(v dbus.Variant) []string {
	switch val := v.Value().(type) {
	case []string:
		return val
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func (c *MPRISClient) control(ctx context.Context, method, verb string) error {
	player, err := c.pick(ctx)
	if err != nil {
		return err
	}
	if player == "" {
		return ErrNoPlayer
	}
	if err := c.conn.Call(ctx, player, mprisPath, mprisPlayer+"."+method); err != nil {
		return fmt.Errorf("failed to %s: %w", verb, err)
	}
	return nil
}

// Play resumes playback
func (c *MPRISClient) Play(ctx context.Context) error {
	return c.control(ctx, "Play", "play")
}

// Pause pauses playback
func (c *MPRISClient) Pause(ctx context.Context) error {
	return c.control(ctx, "Pause", "pause")
}

// PlayPause toggles between play and pause
func (c *MPRISClient) PlayPause(ctx context.Context) error {
	return c.control(ctx, "PlayPause", "playpause")
}

// NextTrack skips to the next track
func (c *MPRISClient) NextTrack(ctx context.Context) error {
	return c.control(ctx, "Next", "skip to next track")
}

// PreviousTrack goes to the previous track
func (c *MPRISClient) PreviousTrack(ctx context.Context) error {
	return c.control(ctx, "Previous", "go to previous track")
}
