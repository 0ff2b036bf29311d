// Package generation wraps external text-generation backends behind a
// single resilient call.
//
// A Client owns the retry policy and error classification. Each call to
// Generate gets its own retry budget; nothing is shared between calls, and
// the Client holds no mutable state, so it is safe to use from many
// debates at once.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

const (
	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 5
	// DefaultBaseDelay is the wait before the first retry; it doubles each attempt.
	DefaultBaseDelay = 5 * time.Second
	// DefaultAttemptTimeout bounds one attempt. It stays below the 60s
	// timeout common to HTTP clients in front of the engine.
	DefaultAttemptTimeout = 50 * time.Second
	// MaxRetriesLimit is the largest MaxRetries a configuration may ask for.
	MaxRetriesLimit = 10

	maxBackoffShift = 16
)

// Request is the input to a single backend attempt.
type Request struct {
	Input             string
	SystemInstruction string
	Model             string
	Temperature       *float64
	// Extra holds unrecognized config options, passed through untouched.
	Extra map[string]any
}

// Options configures a Generate call.
type Options struct {
	Provider          string
	Model             string
	Temperature       *float64
	SystemInstruction string
	Extra             map[string]any
}

// Backend performs one generation attempt against an external service.
type Backend interface {
	// Name returns the backend's identifier.
	Name() string

	// Complete sends one request and returns the generated text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Policy controls retries for a Client.
type Policy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the standard retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		BaseDelay:      DefaultBaseDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Backoff returns the wait after the given zero-based failed attempt.
// The result saturates instead of overflowing.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	d := p.BaseDelay << attempt
	if p.BaseDelay > 0 && d>>attempt != p.BaseDelay {
		return time.Duration(math.MaxInt64)
	}
	return d
}

// Client executes generation calls with retries.
type Client struct {
	registry        *Registry
	policy          Policy
	defaultProvider string
	sleep           func(time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaultProvider sets the backend used when Options.Provider is empty.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) { c.defaultProvider = name }
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(sleep func(time.Duration)) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates a Client over the given backends.
func NewClient(registry *Registry, policy Policy, opts ...ClientOption) *Client {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = DefaultAttemptTimeout
	}
	c := &Client{
		registry: registry,
		policy:   policy,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the client's retry policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// DefaultProvider returns the backend used when none is requested.
func (c *Client) DefaultProvider() string {
	return c.defaultProvider
}

// Generate sends input to the selected backend, retrying rate-limit and
// availability failures with exponential backoff. Waits are synchronous.
// Any other failure, or exhausting the budget, returns an *Error wrapping
// the original cause.
func (c *Client) Generate(ctx context.Context, input string, opts Options) (string, error) {
	name := opts.Provider
	if name == "" {
		name = c.defaultProvider
	}
	backend, err := c.registry.Get(name)
	if err != nil {
		return "", &Error{Kind: Malformed, Provider: name, Attempts: 0, Err: err}
	}

	req := Request{
		Input:             input,
		SystemInstruction: opts.SystemInstruction,
		Model:             opts.Model,
		Temperature:       opts.Temperature,
		Extra:             opts.Extra,
	}

	maxAttempts := c.policy.MaxRetries + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		text, err := c.attempt(ctx, backend, req)
		if err == nil {
			if attempt > 0 {
				slog.Info("Generation succeeded after retry",
					"provider", name,
					"attempt", attempt+1,
				)
			}
			return text, nil
		}

		kind := Classify(err)
		if !kind.Retryable() {
			slog.Debug("Generation error is not retryable, failing immediately",
				"provider", name,
				"kind", kind.String(),
				"error", err,
			)
			return "", &Error{Kind: kind, Provider: name, Attempts: attempt + 1, Err: err}
		}

		if attempt == maxAttempts-1 {
			slog.Error("Generation failed after all retries",
				"provider", name,
				"attempts", attempt+1,
				"kind", kind.String(),
				"error", err,
			)
			return "", &Error{Kind: kind, Provider: name, Attempts: attempt + 1, Err: err}
		}

		backoff := c.policy.Backoff(attempt)
		slog.Warn("Generation failed, will retry",
			"provider", name,
			"attempt", attempt+1,
			"max_attempts", maxAttempts,
			"kind", kind.String(),
			"backoff", backoff,
			"error", err,
		)
		c.sleep(backoff)
	}

	return "", fmt.Errorf("unexpected retry loop exit")
}

// attempt runs one backend call bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, backend Backend, req Request) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()

	start := time.Now()
	text, err := backend.Complete(actx, req)
	if err != nil {
		if actx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s: %w", errAttemptTimeout, c.policy.AttemptTimeout, err)
		}
		return "", err
	}

	slog.Debug("Generation attempt successful",
		"provider", backend.Name(),
		"model", req.Model,
		"output_len", len(text),
		"duration", time.Since(start),
	)
	return text, nil
}
