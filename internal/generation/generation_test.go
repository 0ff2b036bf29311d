package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.waits = append(s.waits, d)
}

func newTestClient(t *testing.T, backend Backend) (*Client, *sleepRecorder) {
	t.Helper()
	registry := NewRegistry()
	registry.Register(backend)
	rec := &sleepRecorder{}
	policy := Policy{MaxRetries: 5, BaseDelay: 10 * time.Millisecond, AttemptTimeout: time.Second}
	client := NewClient(registry, policy,
		WithDefaultProvider(backend.Name()),
		WithSleeper(rec.sleep),
	)
	return client, rec
}

func TestGenerateRetriesWithBackoff(t *testing.T) {
	backend := NewMockBackend("mock",
		MockStep{Err: &StatusError{Code: 503, Message: "unavailable"}},
		MockStep{Err: &StatusError{Code: 429, Message: "slow down"}},
		MockStep{Text: "Hello"},
	)
	client, rec := newTestClient(t, backend)

	text, err := client.Generate(context.Background(), "prompt", Options{})

	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, 3, backend.CallCount())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, rec.waits)
}

func TestGenerateUnauthorizedIsNotRetried(t *testing.T) {
	backend := NewMockBackend("mock", MockStep{Err: &StatusError{Code: 401}})
	client, rec := newTestClient(t, backend)

	_, err := client.Generate(context.Background(), "prompt", Options{})

	require.Error(t, err)
	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, Unauthorized, genErr.Kind)
	assert.Equal(t, 1, genErr.Attempts)
	assert.Equal(t, 1, backend.CallCount())
	assert.Empty(t, rec.waits)
}

func TestGenerateExhaustsBudget(t *testing.T) {
	var steps []MockStep
	for i := 0; i < 10; i++ {
		steps = append(steps, MockStep{Err: &StatusError{Code: 502}})
	}
	backend := NewMockBackend("mock", steps...)
	client, rec := newTestClient(t, backend)

	_, err := client.Generate(context.Background(), "prompt", Options{})

	require.Error(t, err)
	assert.Equal(t, Unavailable, KindOf(err))
	assert.Equal(t, 6, backend.CallCount())
	assert.Len(t, rec.waits, 5)
	assert.Equal(t, 160*time.Millisecond, rec.waits[4])

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr), "original cause must stay reachable")
}

func TestGenerateUnknownProvider(t *testing.T) {
	client, _ := newTestClient(t, NewMockBackend("mock"))

	_, err := client.Generate(context.Background(), "prompt", Options{Provider: "nope"})

	assert.Equal(t, Malformed, KindOf(err))
}

func TestGeneratePassesOptions(t *testing.T) {
	backend := NewMockBackend("mock")
	client, _ := newTestClient(t, backend)
	temp := 0.3

	_, err := client.Generate(context.Background(), "ctx", Options{
		Model:             "m1",
		Temperature:       &temp,
		SystemInstruction: "be brief",
		Extra:             map[string]any{"top_p": 0.9},
	})
	require.NoError(t, err)

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "ctx", calls[0].Input)
	assert.Equal(t, "m1", calls[0].Model)
	assert.Equal(t, "be brief", calls[0].SystemInstruction)
	assert.Equal(t, 0.3, *calls[0].Temperature)
	assert.Equal(t, 0.9, calls[0].Extra["top_p"])
}

type slowBackend struct{}

func (slowBackend) Name() string { return "slow" }

func (slowBackend) Complete(ctx context.Context, req Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestAttemptTimeoutIsUnavailable(t *testing.T) {
	registry := NewRegistry()
	registry.Register(slowBackend{})
	rec := &sleepRecorder{}
	client := NewClient(registry,
		Policy{MaxRetries: 1, BaseDelay: time.Millisecond, AttemptTimeout: 5 * time.Millisecond},
		WithDefaultProvider("slow"), WithSleeper(rec.sleep))

	_, err := client.Generate(context.Background(), "prompt", Options{})

	assert.Equal(t, Unavailable, KindOf(err))
	assert.Len(t, rec.waits, 1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"429", &StatusError{Code: 429}, RateLimited},
		{"502", &StatusError{Code: 502}, Unavailable},
		{"503", &StatusError{Code: 503}, Unavailable},
		{"504", &StatusError{Code: 504}, Unavailable},
		{"401", &StatusError{Code: 401}, Unauthorized},
		{"403", &StatusError{Code: 403}, Unauthorized},
		{"400", &StatusError{Code: 400}, Malformed},
		{"404", &StatusError{Code: 404}, Malformed},
		{"413", &StatusError{Code: 413}, Malformed},
		{"422", &StatusError{Code: 422}, Malformed},
		{"500", &StatusError{Code: 500}, Unknown},
		{"wrapped", fmt.Errorf("call: %w", &StatusError{Code: 429}), RateLimited},
		{"deadline", context.DeadlineExceeded, Unavailable},
		{"resource exhausted message", errors.New("RESOURCE_EXHAUSTED: quota"), RateLimited},
		{"overloaded message", errors.New("model is overloaded"), Unavailable},
		{"opaque", errors.New("boom"), Unknown},
		{"nil", nil, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHealthCheck(t *testing.T) {
	status := HealthCheck(context.Background(), NewMockBackend("mock"), "")
	assert.True(t, status.Available)

	status = HealthCheck(context.Background(), NewMockBackend("mock", MockStep{Err: &StatusError{Code: 401}}), "")
	assert.False(t, status.Available)
	assert.Equal(t, "unauthorized", status.Kind)
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMockBackend("zeta"))
	r.Register(NewMockBackend("alpha"))

	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
	assert.True(t, r.Has("zeta"))
	_, err := r.Get("missing")
	assert.Error(t, err)
}

func TestPolicyBackoffNeverGoesNegative(t *testing.T) {
	p := Policy{BaseDelay: 5 * time.Second}
	assert.Equal(t, 5*time.Second, p.Backoff(0))
	assert.Equal(t, 20*time.Second, p.Backoff(2))

	prev := time.Duration(0)
	for attempt := 0; attempt < 64; attempt++ {
		d := p.Backoff(attempt)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		prev = d
	}

	huge := Policy{BaseDelay: time.Duration(1) << 60}
	assert.Equal(t, time.Duration(math.MaxInt64), huge.Backoff(8))
}
