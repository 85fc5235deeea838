package lastfm

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// AuthService provides the raw auth.* calls. Most callers want the
// SessionManager, which sequences these and caches the results.
type AuthService struct {
	client *Client
}

// GetToken requests an authentication token from Last.fm.
//
// This is the first step in the authentication flow. After obtaining a token,
// the user must authorize it by visiting the URL returned by GetAuthURL.
func (a *AuthService) GetToken(ctx context.Context) (string, error) {
	env, err := a.client.call(ctx, http.MethodGet, "auth.getToken", nil, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token string `xml:"token"`
	}
	if err := unmarshalInner(env.Inner, &resp); err != nil {
		return "", fmt.Errorf("lastfm: failed to parse token response: %w", err)
	}
	token := strings.TrimSpace(resp.Token)
	if token == "" {
		return "", fmt.Errorf("%w: empty token", ErrMalformedResponse)
	}
	return token, nil
}

// GetAuthURL returns the URL where users authorize the token.
func (a *AuthService) GetAuthURL(token string) string {
	q := url.Values{}
	q.Set("api_key", a.client.creds.APIKey)
	q.Set("token", token)
	return a.client.authURL + "?" + q.Encode()
}

// GetSession exchanges an authorized token for a session.
//
// The returned session key does not expire and should be stored for
// future runs.
func (a *AuthService) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, &ArgumentError{Field: "token", Err: ErrMissingField}
	}

	env, err := a.client.call(ctx, http.MethodGet, "auth.getSession", map[string]string{"token": token}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Session *struct {
			Name       string `xml:"name"`
			Key        string `xml:"key"`
			Subscriber int    `xml:"subscriber"`
		} `xml:"session"`
	}
	if err := unmarshalInner(env.Inner, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: failed to parse session response: %w", err)
	}
	if resp.Session == nil || strings.TrimSpace(resp.Session.Key) == "" {
		return nil, ErrNoSession
	}

	return &Session{
		Key:        strings.TrimSpace(resp.Session.Key),
		Username:   strings.TrimSpace(resp.Session.Name),
		Subscriber: resp.Session.Subscriber == 1,
	}, nil
}

// unmarshalInner decodes the inner XML of an envelope.
func unmarshalInner(inner []byte, v interface{}) error {
	wrapped := make([]byte, 0, len(inner)+13)
	wrapped = append(wrapped, "<root>"...)
	wrapped = append(wrapped, inner...)
	wrapped = append(wrapped, "</root>"...)
	if err := xml.Unmarshal(wrapped, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
