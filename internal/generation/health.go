package generation

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// HealthCheckInput is the input sent to backends for health checks.
const HealthCheckInput = "1+1? One digit answer only"

// HealthStatus is the outcome of probing a backend.
type HealthStatus struct {
	Available    bool          `json:"available"`
	Kind         string        `json:"kind,omitempty"`
	Error        string        `json:"error,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	CheckedAt    time.Time     `json:"checked_at"`
}

// HealthCheck sends a single probe to b without retries.
func HealthCheck(ctx context.Context, b Backend, model string) HealthStatus {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := b.Complete(ctx, Request{Input: HealthCheckInput, Model: model})
	elapsed := time.Since(start)
	if err != nil {
		return HealthStatus{
			Available:    false,
			Kind:         Classify(err).String(),
			Error:        err.Error(),
			ResponseTime: elapsed,
			CheckedAt:    time.Now(),
		}
	}

	if err := validateHealthResponse(text); err != nil {
		return HealthStatus{
			Available:    false,
			Error:        err.Error(),
			ResponseTime: elapsed,
			CheckedAt:    time.Now(),
		}
	}

	return HealthStatus{
		Available:    true,
		ResponseTime: elapsed,
		CheckedAt:    time.Now(),
	}
}

func validateHealthResponse(content string) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "2") {
		return nil
	}
	if trimmed == "" {
		return fmt.Errorf("unexpected response: empty")
	}
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return fmt.Errorf("unexpected response: %q", trimmed)
}
