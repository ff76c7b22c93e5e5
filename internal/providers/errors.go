package providers

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyResponse is returned when a service answers without any choices.
	ErrEmptyResponse = errors.New("provider returned no choices")

	// ErrNoAPIKey is returned before any request when credentials are missing.
	ErrNoAPIKey = errors.New("api key not configured")
)

// setupError is a local misconfiguration. Repeating the call cannot fix it.
type setupError struct {
	provider string
	err      error
}

func (e *setupError) Error() string   { return e.provider + ": " + e.err.Error() }
func (e *setupError) Unwrap() error   { return e.err }
func (e *setupError) Retryable() bool { return false }

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, body)
}

// Retryable reports whether the request may succeed if repeated: rate
// limiting and server-side failures are, auth and validation errors are not.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
