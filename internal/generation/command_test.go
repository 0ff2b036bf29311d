package generation

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoArgs prints every argument it receives on its own line.
func echoArgs(name string) *CommandBackend {
	return NewCommandBackend(CommandConfig{
		Name:    name,
		Command: "sh",
		Args:    []string{"-c", `for a in "$0" "$@"; do printf '%s\n' "$a"; done`},
	})
}

func TestCommandBackendArgs(t *testing.T) {
	b := echoArgs("echo")
	assert.Equal(t, "echo", b.Name())
	assert.True(t, b.Available())

	out, err := b.Complete(context.Background(), Request{
		Input:             "Topic: cars",
		SystemInstruction: "Be brief.",
		Model:             "local-7b",
	})
	require.NoError(t, err)
	assert.Equal(t, "--model\nlocal-7b\nBe brief.\n\nTopic: cars", out)
}

func TestCommandBackendFailures(t *testing.T) {
	t.Run("stderr is classified", func(t *testing.T) {
		b := NewCommandBackend(CommandConfig{
			Command:   "sh",
			Args:      []string{"-c", "echo 'Error: rate limit exceeded' >&2; exit 1"},
			ModelFlag: "-",
		})
		_, err := b.Complete(context.Background(), Request{Input: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exited with code 1")
		assert.Equal(t, RateLimited, Classify(err))
	})

	t.Run("missing executable", func(t *testing.T) {
		b := NewCommandBackend(CommandConfig{Command: "agora-no-such-cli"})
		assert.False(t, b.Available())
		_, err := b.Complete(context.Background(), Request{Input: "hi"})
		require.Error(t, err)
		assert.Equal(t, Unknown, Classify(err))
	})

	t.Run("empty output", func(t *testing.T) {
		b := NewCommandBackend(CommandConfig{Command: "sh", Args: []string{"-c", "true"}, ModelFlag: "-"})
		_, err := b.Complete(context.Background(), Request{Input: "hi"})
		assert.ErrorContains(t, err, "no output")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b := NewCommandBackend(CommandConfig{Command: "sh", Args: []string{"-c", "sleep 5"}, ModelFlag: "-"})
		_, err := b.Complete(ctx, Request{Input: "hi"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newLimitedWriter(&buf, 5)

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, w.limited)

	n, err = w.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, w.limited)
	assert.Equal(t, "abcde", buf.String())
}
