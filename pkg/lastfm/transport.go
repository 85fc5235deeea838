package lastfm

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Envelope is the root XML document of every Last.fm response.
type Envelope struct {
	XMLName xml.Name `xml:"lfm"`
	Status  string   `xml:"status,attr"`
	Inner   []byte   `xml:",innerxml"`
}

// APIError is the <error> element of a failed envelope.
type APIError struct {
	Code    int    `xml:"code,attr"`
	Message string `xml:",chardata"`
}

const (
	apiStatusOK     = "ok"
	apiStatusFailed = "failed"
)

// Transport executes a request against the API endpoint and returns
// the parsed envelope. Implementations must return *Error for a failed
// envelope and *TransportError for anything that is not an envelope.
type Transport interface {
	Get(ctx context.Context, endpoint string, params url.Values) (*Envelope, error)
	Post(ctx context.Context, endpoint string, params url.Values) (*Envelope, error)
}

// ProxyConfig describes an outbound proxy. Scheme is "http" (default),
// "https" or "socks5".
type ProxyConfig struct {
	Scheme   string
	Host     string
	Port     int
	User     string
	Password string
}

func (p *ProxyConfig) addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// URL returns the proxy as a URL, including credentials when set.
func (p *ProxyConfig) URL() *url.URL {
	scheme := p.Scheme
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: p.addr()}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u
}

// TransportConfig configures an HTTPTransport.
type TransportConfig struct {
	Proxy      *ProxyConfig  // Optional: proxy applied to every request
	Timeout    time.Duration // Optional: per-request timeout (default 30s)
	UserAgent  string        // Optional: defaults to DefaultUserAgent
	HTTPClient *http.Client  // Optional: used as-is, Proxy and Timeout are ignored
}

// DefaultUserAgent is sent when TransportConfig.UserAgent is empty.
const DefaultUserAgent = "elpis/1.0"

// HTTPTransport is the Transport backed by net/http.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport builds a transport. The proxy, if any, is fixed for
// the lifetime of the transport.
func NewHTTPTransport(cfg TransportConfig) (*HTTPTransport, error) {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if cfg.HTTPClient != nil {
		return &HTTPTransport{client: cfg.HTTPClient, userAgent: userAgent}, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rt := http.DefaultTransport.(*http.Transport).Clone()
	if p := cfg.Proxy; p != nil && p.Host != "" {
		if p.Port <= 0 || p.Port > 65535 {
			return nil, fmt.Errorf("%w: proxy port %d", ErrInvalidConfig, p.Port)
		}
		switch p.Scheme {
		case "", "http", "https":
			rt.Proxy = http.ProxyURL(p.URL())
		case "socks5":
			var auth *proxy.Auth
			if p.User != "" {
				auth = &proxy.Auth{User: p.User, Password: p.Password}
			}
			dialer, err := proxy.SOCKS5("tcp", p.addr(), auth, proxy.Direct)
			if err != nil {
				return nil, fmt.Errorf("lastfm: socks5 proxy: %w", err)
			}
			rt.Proxy = nil
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				rt.DialContext = cd.DialContext
			} else {
				rt.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		default:
			return nil, fmt.Errorf("%w: proxy scheme %q", ErrInvalidConfig, p.Scheme)
		}
	}

	return &HTTPTransport{
		client:    &http.Client{Transport: rt, Timeout: timeout},
		userAgent: userAgent,
	}, nil
}

// Get sends params as a query string.
func (t *HTTPTransport) Get(ctx context.Context, endpoint string, params url.Values) (*Envelope, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, URL: endpoint, Err: err}
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &TransportError{Op: http.MethodGet, URL: endpoint, Err: err}
	}
	return t.do(req, endpoint)
}

// Post sends params as a form-encoded body.
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, params url.Values) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req, endpoint)
}

func (t *HTTPTransport) do(req *http.Request, endpoint string) (*Envelope, error) {
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: endpoint, Err: fmt.Errorf("read body: %w", err)}
	}

	env, err := parseEnvelope(body, resp.StatusCode)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, &TransportError{Op: req.Method, URL: endpoint, Err: err}
	}
	return env, nil
}

// parseEnvelope interprets a response body. Non-2xx bodies are still
// inspected for a failed envelope so the service's own code surfaces.
func parseEnvelope(body []byte, status int) (*Envelope, error) {
	ok2xx := status >= 200 && status < 300

	var env Envelope
	if err := xml.Unmarshal(body, &env); err != nil {
		if !ok2xx {
			return nil, fmt.Errorf("%w: %w", &HTTPStatusError{StatusCode: status}, ErrMalformedResponse)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	switch env.Status {
	case apiStatusFailed:
		var apiErr APIError
		if err := xml.Unmarshal(env.Inner, &apiErr); err != nil {
			return nil, fmt.Errorf("%w: error element: %v", ErrMalformedResponse, err)
		}
		return nil, &Error{
			Code:       apiErr.Code,
			Message:    strings.TrimSpace(apiErr.Message),
			HTTPStatus: status,
		}
	case apiStatusOK:
		if !ok2xx {
			return nil, &HTTPStatusError{StatusCode: status}
		}
		return &env, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedResponse, env.Status)
	}
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	t := time.NewTimer(duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// nextBackoff doubles the backoff, capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
