package scrobbler

import (
	"context"
	"fmt"

	"github.com/adammhaile/elpis/pkg/lastfm"
)

// Client wraps the Last.fm API client
type Client struct {
	client *lastfm.Client
}

// New creates a new Last.fm client from cfg.
func New(cfg lastfm.Config) (*Client, error) {
	client, err := lastfm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create lastfm client: %w", err)
	}
	return &Client{client: client}, nil
}

// AuthenticateWithToken starts the authorization handshake and returns
// the URL the user should visit. Calling it again reuses the token until
// it expires.
func (c *Client) AuthenticateWithToken(ctx context.Context) (authURL string, err error) {
	authURL, err = c.client.Sessions().AuthorizationURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get auth token: %w", err)
	}
	return authURL, nil
}

// GetSession completes the handshake after the user authorized the
// token. The returned session key should be stored for future use.
func (c *Client) GetSession(ctx context.Context) (*lastfm.Session, error) {
	session, err := c.client.Sessions().GetSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// IsAuthenticated checks if the client has a session
func (c *Client) IsAuthenticated() bool {
	return c.client.Sessions().State() == lastfm.SessionEstablished
}

// GetSessionKey returns the current session key
func (c *Client) GetSessionKey() string {
	return c.client.GetSessionKey()
}

// Submitter returns the now playing and scrobble calls.
func (c *Client) Submitter() Submitter {
	return c.client.Scrobble()
}

// Ratings returns the rating calls.
func (c *Client) Ratings() RatingService {
	return c.client.Track()
}

// NewQueue returns an empty queue bound to this client.
func (c *Client) NewQueue() *Queue {
	return NewQueue(c.client.Scrobble())
}

// API exposes the underlying SDK client.
func (c *Client) API() *lastfm.Client {
	return c.client
}
