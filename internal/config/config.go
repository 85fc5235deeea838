package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adammhaile/elpis/pkg/lastfm"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Output format template for the now command
	// Default: "{{.Artist}} - {{.Name}}"
	OutputFormat string

	// Fixed output width for the now command, 0 for no padding
	OutputWidth int

	// Poll interval for the daemon (in seconds)
	PollInterval int

	// MPRIS player to follow, e.g. "spotify". Empty follows whichever plays.
	Player string

	// Last.fm API credentials
	LastFM LastFMConfig

	// Outbound proxy for Last.fm calls
	Proxy ProxyConfig

	Scrobbler ScrobblerConfig

	History HistoryConfig

	dir string
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
	Timeout    int // Request timeout in seconds
}

// ProxyConfig holds proxy settings. Host empty means no proxy.
type ProxyConfig struct {
	Scheme   string
	Host     string
	Port     int
	User     string
	Password string
}

// ScrobblerConfig controls the submission worker.
type ScrobblerConfig struct {
	DrainInterval int  // Seconds between drains
	FailFast      bool // Stop a drain at the first failure
	MaxAttempts   int  // Attempts per call for temporary failures
}

// HistoryConfig controls the outcome journal.
type HistoryConfig struct {
	Path          string // Empty uses history.db in the data dir
	RetentionDays int    // Rows older than this are removed on shutdown, 0 keeps all
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return LoadFrom(getConfigDir())
}

// LoadFrom reads config.yaml from dir (falling back to the working
// directory) and the environment.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine; a broken one is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// ELPIS_LASTFM_API_KEY overrides lastfm.api_key, and so on.
	v.SetEnvPrefix("ELPIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		OutputFormat: v.GetString("output_format"),
		OutputWidth:  v.GetInt("output_width"),
		PollInterval: v.GetInt("poll_interval"),
		Player:       v.GetString("player"),
		LastFM: LastFMConfig{
			APIKey:     v.GetString("lastfm.api_key"),
			APISecret:  v.GetString("lastfm.api_secret"),
			SessionKey: v.GetString("lastfm.session_key"),
			Timeout:    v.GetInt("lastfm.timeout"),
		},
		Proxy: ProxyConfig{
			Scheme:   v.GetString("proxy.scheme"),
			Host:     v.GetString("proxy.host"),
			Port:     v.GetInt("proxy.port"),
			User:     v.GetString("proxy.user"),
			Password: v.GetString("proxy.password"),
		},
		Scrobbler: ScrobblerConfig{
			DrainInterval: v.GetInt("scrobbler.drain_interval"),
			FailFast:      v.GetBool("scrobbler.fail_fast"),
			MaxAttempts:   v.GetInt("scrobbler.max_attempts"),
		},
		History: HistoryConfig{
			Path:          v.GetString("history.path"),
			RetentionDays: v.GetInt("history.retention_days"),
		},
		dir: dir,
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_format", "{{.Artist}} - {{.Name}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("poll_interval", 1)
	v.SetDefault("player", "")
	v.SetDefault("lastfm.timeout", 30)
	v.SetDefault("proxy.scheme", "http")
	v.SetDefault("proxy.port", 8080)
	v.SetDefault("scrobbler.drain_interval", 10)
	v.SetDefault("scrobbler.fail_fast", false)
	v.SetDefault("scrobbler.max_attempts", 1)
	v.SetDefault("history.retention_days", 30)
}

// LastFMClientConfig builds the SDK configuration from the
// credentials, proxy and retry settings.
func (c *Config) LastFMClientConfig() lastfm.Config {
	return lastfm.Config{
		APIKey:      c.LastFM.APIKey,
		APISecret:   c.LastFM.APISecret,
		SessionKey:  c.LastFM.SessionKey,
		Proxy:       c.ProxyConfig(),
		Timeout:     time.Duration(c.LastFM.Timeout) * time.Second,
		MaxAttempts: c.Scrobbler.MaxAttempts,
	}
}

// ProxyConfig returns the proxy for the SDK, or nil when none is set.
func (c *Config) ProxyConfig() *lastfm.ProxyConfig {
	if c.Proxy.Host == "" {
		return nil
	}
	return &lastfm.ProxyConfig{
		Scheme:   c.Proxy.Scheme,
		Host:     c.Proxy.Host,
		Port:     c.Proxy.Port,
		User:     c.Proxy.User,
		Password: c.Proxy.Password,
	}
}

// DrainInterval returns the worker interval as a duration.
func (c *Config) DrainInterval() time.Duration {
	return time.Duration(c.Scrobbler.DrainInterval) * time.Second
}

// Retention returns the history retention as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "elpis")

	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// GetDataDir returns ~/.local/share/elpis, where the state file and the
// history database live.
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "elpis")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	dir := c.dir
	if dir == "" {
		dir = getConfigDir()
	}
	configFile := filepath.Join(dir, "config.yaml")

	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("poll_interval", c.PollInterval)
	v.Set("player", c.Player)
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.session_key", c.LastFM.SessionKey)
	v.Set("lastfm.timeout", c.LastFM.Timeout)
	if c.Proxy.Host != "" {
		v.Set("proxy.scheme", c.Proxy.Scheme)
		v.Set("proxy.host", c.Proxy.Host)
		v.Set("proxy.port", c.Proxy.Port)
		v.Set("proxy.user", c.Proxy.User)
		v.Set("proxy.password", c.Proxy.Password)
	}
	v.Set("scrobbler.drain_interval", c.Scrobbler.DrainInterval)
	v.Set("scrobbler.fail_fast", c.Scrobbler.FailFast)
	v.Set("scrobbler.max_attempts", c.Scrobbler.MaxAttempts)
	v.Set("history.path", c.History.Path)
	v.Set("history.retention_days", c.History.RetentionDays)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return v.WriteConfigAs(configFile)
}
