package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Kind classifies a generation failure.
type Kind int

const (
	// Unknown is any failure that could not be classified. Never retried.
	Unknown Kind = iota
	// RateLimited means the backend throttled the request. Retried.
	RateLimited
	// Unavailable means the backend was temporarily unreachable or timed out. Retried.
	Unavailable
	// Unauthorized means the credentials were rejected. Never retried.
	Unauthorized
	// Malformed means the request or configuration was invalid. Never retried.
	Malformed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Unavailable:
		return "unavailable"
	case Unauthorized:
		return "unauthorized"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Retryable reports whether a failure of this kind is worth another attempt.
func (k Kind) Retryable() bool {
	return k == RateLimited || k == Unavailable
}

// Error is returned by Client.Generate when no text could be produced.
type Error struct {
	Kind     Kind
	Provider string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s generation failed (%s) after %d attempts: %v", e.Provider, e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s generation failed (%s): %v", e.Provider, e.Kind, e.Err)
}

// Unwrap returns the original cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind carried by err, or Unknown if err is not a
// generation Error.
func KindOf(err error) Kind {
	var genErr *Error
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return Unknown
}

// StatusError is a failure carrying an HTTP-like status code. Backends
// without an SDK error type report failures with it.
type StatusError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// errAttemptTimeout marks an attempt cut off by the per-attempt timeout.
var errAttemptTimeout = errors.New("attempt timed out")

// Classify maps any backend failure into the fixed taxonomy. It is the only
// place raw failure details are inspected.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return classifyStatus(oaErr.StatusCode)
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return classifyStatus(anErr.StatusCode)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.Code)
	}

	if errors.Is(err, errAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return Unavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Unavailable
	}

	return classifyMessage(err.Error())
}

func classifyStatus(code int) Kind {
	switch code {
	case http.StatusTooManyRequests:
		return RateLimited
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return Unavailable
	case http.StatusUnauthorized, http.StatusForbidden:
		return Unauthorized
	case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return Malformed
	default:
		return Unknown
	}
}

func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "too many requests"):
		return RateLimited
	case strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"):
		return Unavailable
	case strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "permission denied"):
		return Unauthorized
	default:
		return Unknown
	}
}
