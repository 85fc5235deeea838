package lastfm

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"
)

// fakeTransport answers calls from a per-method table of raw XML bodies.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []url.Values
	verbs     []string
}

func newFakeTransport(responses map[string]string) *fakeTransport {
	return &fakeTransport{responses: responses}
}

func (f *fakeTransport) Get(ctx context.Context, endpoint string, params url.Values) (*Envelope, error) {
	return f.handle(ctx, "GET", params)
}

func (f *fakeTransport) Post(ctx context.Context, endpoint string, params url.Values) (*Envelope, error) {
	return f.handle(ctx, "POST", params)
}

func (f *fakeTransport) handle(ctx context.Context, verb string, params url.Values) (*Envelope, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.verbs = append(f.verbs, verb)
	body, ok := f.responses[params.Get("method")]
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: verb, URL: "fake", Err: err}
	}
	if !ok {
		body = `<lfm status="failed"><error code="3">Invalid Method</error></lfm>`
	}
	env, err := parseEnvelope([]byte(body), 200)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			return nil, apiErr
		}
		return nil, &TransportError{Op: verb, URL: "fake", Err: err}
	}
	return env, nil
}

func (f *fakeTransport) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Get("method") == method {
			n++
		}
	}
	return n
}

func (f *fakeTransport) lastCall() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFakeClient(t *testing.T, ft *fakeTransport, clock *fakeClock, sessionKey string) *Client {
	t.Helper()
	cfg := Config{
		APIKey:     "test-api-key",
		APISecret:  "test-secret",
		SessionKey: sessionKey,
		Transport:  ft,
	}
	if clock != nil {
		cfg.Clock = clock.Now
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

const (
	tokenXML   = `<lfm status="ok"><token>tok-1</token></lfm>`
	sessionXML = `<lfm status="ok"><session><name>user</name><key>sk-1</key><subscriber>0</subscriber></session></lfm>`
)
