package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Config holds client configuration.
type Config struct {
	APIKey       string        // Required: Last.fm API key
	APISecret    string        // Required: Last.fm API secret
	SessionKey   string        // Optional: previously obtained session key
	Transport    Transport     // Optional: defaults to an HTTPTransport
	HTTPClient   *http.Client  // Optional: HTTP client for the default transport
	Proxy        *ProxyConfig  // Optional: proxy for the default transport
	Timeout      time.Duration // Optional: request timeout for the default transport
	BaseURL      string        // Optional: API endpoint (defaults to DefaultBaseURL)
	AuthURL      string        // Optional: authorization page (defaults to DefaultAuthURL)
	Logger       Logger        // Optional: Logger interface for debug logging
	MaxAttempts  int           // Optional: attempts per call for temporary failures (default 1)
	RetryBackoff time.Duration // Optional: first retry delay (default 1s)
	Clock        func() time.Time
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Last.fm API operations.
type Client struct {
	creds        Credentials
	transport    Transport
	baseURL      string
	authURL      string
	logger       Logger
	maxAttempts  int
	retryBackoff time.Duration

	sessions *SessionManager
	auth     *AuthService
	scrobble *ScrobbleService
	track    *TrackService
}

const (
	// DefaultBaseURL is the default Last.fm API endpoint.
	DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// DefaultAuthURL is the page where users authorize a token.
	DefaultAuthURL = "https://www.last.fm/api/auth/"
)

// NewClient creates a new Last.fm API client.
//
// Returns an error if required configuration (APIKey, APISecret) is
// missing or the proxy configuration is unusable.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &ArgumentError{Field: "APIKey", Err: ErrInvalidConfig}
	}
	if cfg.APISecret == "" {
		return nil, &ArgumentError{Field: "APISecret", Err: ErrInvalidConfig}
	}

	transport := cfg.Transport
	if transport == nil {
		t, err := NewHTTPTransport(TransportConfig{
			Proxy:      cfg.Proxy,
			Timeout:    cfg.Timeout,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		transport = t
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Client{
		creds:        Credentials{APIKey: cfg.APIKey, APISecret: cfg.APISecret},
		transport:    transport,
		baseURL:      baseURL,
		authURL:      authURL,
		logger:       cfg.Logger,
		maxAttempts:  attempts,
		retryBackoff: backoff,
	}

	c.auth = &AuthService{client: c}
	c.scrobble = &ScrobbleService{client: c, now: clock}
	c.track = &TrackService{client: c}
	c.sessions = newSessionManager(c.auth, clock)
	if cfg.SessionKey != "" {
		c.sessions.SetSession(&Session{Key: cfg.SessionKey})
	}

	return c, nil
}

// Auth returns the low level authentication service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Sessions returns the session manager.
func (c *Client) Sessions() *SessionManager {
	return c.sessions
}

// Scrobble returns the scrobbling service.
func (c *Client) Scrobble() *ScrobbleService {
	return c.scrobble
}

// Track returns the rating service.
func (c *Client) Track() *TrackService {
	return c.track
}

// SetSessionKey replaces the session with one built from key.
func (c *Client) SetSessionKey(key string) {
	if key == "" {
		c.sessions.SetSession(nil)
		return
	}
	c.sessions.SetSession(&Session{Key: key})
}

// GetSessionKey returns the current session key, or "" if there is none.
func (c *Client) GetSessionKey() string {
	if s := c.sessions.Session(); s != nil {
		return s.Key
	}
	return ""
}

// authedSession returns the session required by track calls.
func (c *Client) authedSession() (*Session, error) {
	s := c.sessions.Session()
	if s == nil {
		return nil, ErrNoSessionKey
	}
	return s, nil
}

// call signs params for method and sends them with the given HTTP verb.
// session is nil for the auth handshake. Temporary failures are retried
// only when MaxAttempts allows it.
func (c *Client) call(ctx context.Context, verb, method string, params map[string]string, session *Session) (*Envelope, error) {
	signed := BuildParams(method, c.creds, session, params, true)
	values := url.Values{}
	for k, v := range signed {
		values.Set(k, v)
	}

	var lastErr error
	backoff := c.retryBackoff
	for i := 0; i < c.maxAttempts; i++ {
		c.logDebugf("lastfm: calling %s (attempt %d/%d)", method, i+1, c.maxAttempts)

		var env *Envelope
		var err error
		if verb == http.MethodGet {
			env, err = c.transport.Get(ctx, c.baseURL, values)
		} else {
			env, err = c.transport.Post(ctx, c.baseURL, values)
		}
		if err == nil {
			c.logDebugf("lastfm: %s succeeded", method)
			return env, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableError(err) || i == c.maxAttempts-1 {
			break
		}
		c.logDebugf("lastfm: %s failed, retrying in %v: %v", method, backoff, err)
		if !sleep(ctx, backoff) {
			return nil, fmt.Errorf("lastfm: %s: %w", method, ctx.Err())
		}
		backoff = nextBackoff(backoff)
	}

	return nil, lastErr
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
