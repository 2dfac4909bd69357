package imagegen

import (
	"errors"
	"fmt"
	"net/http"

	"tattooz/internal/retry"
)

var (
	// ErrTimeout is returned when the whole attempt loop outlives the client timeout.
	ErrTimeout = errors.New("imagegen: request timed out")
	// ErrRateLimited matches HTTP 429 responses from the upstream API.
	ErrRateLimited = errors.New("imagegen: rate limited")
	// ErrMissingCredentials is returned when the account id or token is empty.
	ErrMissingCredentials = errors.New("imagegen: cloudflare account id and api token are required")
	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("imagegen: prompt is required")
	// ErrExhaustedRetries matches failures that consumed every attempt.
	ErrExhaustedRetries = retry.ErrExhausted
)

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("imagegen: http status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("imagegen: http status %d", e.Status)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

// TransportError wraps network level failures (dial, reset, truncated body).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "imagegen: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether err may succeed on another attempt: rate limiting
// and transport failures are retried, every other status is final.
func Retryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}
