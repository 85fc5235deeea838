package lastfm

import (
	"errors"
	"fmt"
)

// Error represents a Last.fm API error.
//
// It is returned whenever the response envelope carries status="failed",
// regardless of the HTTP status code. HTTPStatus records the status the
// error arrived with so callers can tell a 200-with-failure from a 4xx.
type Error struct {
	Code       int    // Last.fm error code
	Message    string // Error message from Last.fm
	HTTPStatus int    // HTTP status of the response carrying the error
}

// Error returns the error message.
func (e *Error) Error() string {
	return fmt.Sprintf("lastfm: error %d: %s", e.Code, e.Message)
}

// Is checks if the target error is a Last.fm error with the same code.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap exposes the HTTP status as an *HTTPStatusError when the error
// arrived on a non-2xx response.
func (e *Error) Unwrap() error {
	if e.HTTPStatus == 0 || (e.HTTPStatus >= 200 && e.HTTPStatus < 300) {
		return nil
	}
	return &HTTPStatusError{StatusCode: e.HTTPStatus}
}

// Temporary returns true if the error is temporary and the request
// may be retried.
//
// The following Last.fm error codes are considered temporary:
//   - 11: Service Offline
//   - 16: Service Temporarily Unavailable
//   - 29: Rate Limit Exceeded
func (e *Error) Temporary() bool {
	switch e.Code {
	case ErrCodeServiceOffline, ErrCodeTempUnavailable, ErrCodeRateLimitExceeded:
		return true
	default:
		return false
	}
}

// Common Last.fm error codes.
const (
	ErrCodeInvalidService       = 2
	ErrCodeInvalidMethod        = 3
	ErrCodeAuthenticationFailed = 4
	ErrCodeInvalidFormat        = 5
	ErrCodeInvalidParameters    = 6
	ErrCodeInvalidResourceSpec  = 7
	ErrCodeOperationFailed      = 8
	ErrCodeInvalidSessionKey    = 9
	ErrCodeInvalidAPIKey        = 10
	ErrCodeServiceOffline       = 11
	ErrCodeSubscribersOnly      = 12
	ErrCodeInvalidSignature     = 13
	ErrCodeUnauthorizedToken    = 14
	ErrCodeExpiredToken         = 15
	ErrCodeTempUnavailable      = 16
	ErrCodeSuspendedAPIKey      = 26
	ErrCodeRateLimitExceeded    = 29
)

// ErrCodeLocal is the ErrorCode recorded on a Response whose failure
// happened on this side of the wire (validation, network, parsing).
const ErrCodeLocal = -1

// HTTPStatusError reports a non-2xx HTTP status.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("lastfm: unexpected HTTP status %d", e.StatusCode)
}

// TransportError is returned when a request could not be completed or
// its response could not be understood.
type TransportError struct {
	Op  string // "GET" or "POST"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("lastfm: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Predefined errors for common cases.
var (
	// ErrNoSessionKey is returned when an operation requires authentication
	// but no session has been established.
	ErrNoSessionKey = errors.New("lastfm: session key required")

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("lastfm: invalid configuration")

	// ErrSessionEstablished is returned by GetSession when a session is
	// already set.
	ErrSessionEstablished = errors.New("lastfm: session already established")

	// ErrNoSession is returned when auth.getSession answers without a key.
	ErrNoSession = errors.New("lastfm: service returned no session")

	// ErrMalformedResponse is wrapped by TransportError when the body is
	// not a Last.fm envelope.
	ErrMalformedResponse = errors.New("lastfm: malformed response")

	// ErrClockSkew is attached to a scrobble the service ignored because
	// its timestamp was too old or too far in the future.
	ErrClockSkew = errors.New("lastfm: timestamp rejected, check the system clock")

	// ErrMissingField is wrapped by ArgumentError for required track fields.
	ErrMissingField = errors.New("lastfm: required field missing")

	// ErrTrackTooShort is returned when a scrobble is below the duration floor.
	ErrTrackTooShort = errors.New("lastfm: track too short to scrobble")

	// ErrNotPlayedEnough is returned when too little time has elapsed since
	// the track started.
	ErrNotPlayedEnough = errors.New("lastfm: track not played long enough")
)

// ArgumentError reports an invalid argument detected before any request.
type ArgumentError struct {
	Field string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Field)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Kind is the coarse classification of an error, used by callers to
// decide between retrying, dropping and surfacing a failure.
type Kind int

const (
	KindNone Kind = iota
	KindArgumentInvalid
	KindAuthenticationFailure
	KindClientBanned
	KindClockSkew
	KindServiceRejected
	KindTransport
	KindMalformedResponse
	KindInvalidOperation
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindArgumentInvalid:
		return "argument_invalid"
	case KindAuthenticationFailure:
		return "authentication_failure"
	case KindClientBanned:
		return "client_banned"
	case KindClockSkew:
		return "clock_skew"
	case KindServiceRejected:
		return "service_rejected"
	case KindTransport:
		return "transport"
	case KindMalformedResponse:
		return "malformed_response"
	case KindInvalidOperation:
		return "invalid_operation"
	default:
		return "unknown"
	}
}

// Retryable reports whether an item failing with this kind may be
// submitted again later.
func (k Kind) Retryable() bool {
	return k == KindTransport || k == KindServiceRejected
}

// KindOf classifies err. A nil error is KindNone; anything unrecognised
// is treated as a transport failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var argErr *ArgumentError
	if errors.As(err, &argErr) || errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrTrackTooShort) || errors.Is(err, ErrNotPlayedEnough) {
		return KindArgumentInvalid
	}
	if errors.Is(err, ErrSessionEstablished) {
		return KindInvalidOperation
	}
	if errors.Is(err, ErrNoSessionKey) || errors.Is(err, ErrNoSession) {
		return KindAuthenticationFailure
	}
	if errors.Is(err, ErrClockSkew) {
		return KindClockSkew
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeAuthenticationFailed, ErrCodeInvalidSessionKey, ErrCodeInvalidSignature,
			ErrCodeUnauthorizedToken, ErrCodeExpiredToken:
			return KindAuthenticationFailure
		case ErrCodeSuspendedAPIKey:
			return KindClientBanned
		default:
			return KindServiceRejected
		}
	}

	if errors.Is(err, ErrMalformedResponse) {
		return KindMalformedResponse
	}
	return KindTransport
}

func asAPIError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// isRetryableError determines if an error should trigger a transport
// level retry.
func isRetryableError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}

	var tErr *TransportError
	if !errors.As(err, &tErr) {
		return false
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500
	}
	return !errors.Is(err, ErrMalformedResponse)
}
