package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by provider selection and request construction.
var (
	// ErrNoCredential means no configured provider has an available credential.
	ErrNoCredential = errors.New("no credential available for any provider")

	// ErrUnknownProvider means an endpoint names a provider with no adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoEndpoint means the selected provider has no URL configured.
	ErrNoEndpoint = errors.New("provider endpoint not configured")
)

// bodyPreviewLimit caps how much of an error body is rendered in Error().
const bodyPreviewLimit = 200

// NetworkError wraps a transport failure: connection refused, DNS, timeout,
// or a broken response stream.
type NetworkError struct {
	Provider string
	err      error
}

// NewNetworkError wraps err as a transport failure for provider.
func NewNetworkError(provider string, err error) error {
	return &NetworkError{Provider: provider, err: err}
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Provider, e.err)
}

func (e *NetworkError) Unwrap() error {
	return e.err
}

// HTTPError is a non-2xx response from the provider.
type HTTPError struct {
	Provider string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > bodyPreviewLimit {
		body = body[:bodyPreviewLimit] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, body)
}

// Transient reports whether the status indicates a temporary condition
// (rate limiting or a server-side failure).
func (e *HTTPError) Transient() bool {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// ParseError means the provider answered 2xx with a body that does not match
// the expected response shape.
type ParseError struct {
	Provider string
	Reason   string
	err      error
}

// NewParseError builds a ParseError; err may be nil.
func NewParseError(provider, reason string, err error) error {
	return &ParseError{Provider: provider, Reason: reason, err: err}
}

func (e *ParseError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("parse %s response: %s: %v", e.Provider, e.Reason, e.err)
	}
	return fmt.Sprintf("parse %s response: %s", e.Provider, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.err
}

// IsTransient returns true if the error is temporary and a later call may
// succeed. Network failures and 429/5xx responses are transient.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	return false
}

// IsFatal returns true if repeating the call cannot help: missing
// credentials, client errors, or malformed responses.
func IsFatal(err error) bool {
	return err != nil && !IsTransient(err)
}
