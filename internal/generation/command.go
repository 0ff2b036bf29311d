package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// MaxCommandOutput caps how much of a command's stdout or stderr is kept.
const MaxCommandOutput = 10 * 1024 * 1024

// CommandConfig configures a backend that shells out to a local CLI.
type CommandConfig struct {
	Name         string
	Command      string
	Args         []string // Placed before the generated arguments
	ModelFlag    string   // Defaults to --model; "-" disables it
	DefaultModel string
}

// CommandBackend runs a CLI once per request and returns its stdout. The
// input, prefixed by the system instruction, is passed as the last argument.
type CommandBackend struct {
	cfg CommandConfig
}

// NewCommandBackend creates a CLI backend.
func NewCommandBackend(cfg CommandConfig) *CommandBackend {
	if cfg.Name == "" {
		cfg.Name = cfg.Command
	}
	if cfg.ModelFlag == "" {
		cfg.ModelFlag = "--model"
	}
	return &CommandBackend{cfg: cfg}
}

// Name returns the backend's identifier.
func (b *CommandBackend) Name() string {
	return b.cfg.Name
}

// Available reports whether the command can be found in PATH.
func (b *CommandBackend) Available() bool {
	_, err := exec.LookPath(b.cfg.Command)
	return err == nil
}

func (b *CommandBackend) args(req Request) []string {
	args := append([]string{}, b.cfg.Args...)

	model := req.Model
	if model == "" {
		model = b.cfg.DefaultModel
	}
	if model != "" && b.cfg.ModelFlag != "-" {
		args = append(args, b.cfg.ModelFlag, model)
	}

	input := req.Input
	if req.SystemInstruction != "" {
		input = req.SystemInstruction + "\n\n" + input
	}
	return append(args, input)
}

// Complete runs the command. Failures carry stderr so Classify can match
// rate-limit and availability messages.
func (b *CommandBackend) Complete(ctx context.Context, req Request) (string, error) {
	if _, err := exec.LookPath(b.cfg.Command); err != nil {
		return "", fmt.Errorf("executable %q not found in PATH: %w", b.cfg.Command, err)
	}

	args := b.args(req)
	slog.Debug("Executing CLI command", "provider", b.cfg.Name, "command", b.cfg.Command, "args_count", len(args))

	cmd := exec.CommandContext(ctx, b.cfg.Command, args...)
	var stdout, stderr bytes.Buffer
	stdoutLimited := newLimitedWriter(&stdout, MaxCommandOutput)
	cmd.Stdout = stdoutLimited
	cmd.Stderr = newLimitedWriter(&stderr, MaxCommandOutput)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "command failed"
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with code %d: %s", b.cfg.Command, exitErr.ExitCode(), msg)
		}
		return "", fmt.Errorf("failed to run %s: %w", b.cfg.Command, err)
	}

	result := strings.TrimSpace(stdout.String())
	if stdoutLimited.limited {
		result += "\n... (output truncated)"
	}
	if result == "" {
		return "", fmt.Errorf("%s produced no output", b.cfg.Command)
	}
	return result, nil
}

// limitedWriter discards everything past limit bytes.
type limitedWriter struct {
	w       io.Writer
	n       int64
	limit   int64
	limited bool
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.n >= l.limit {
		l.limited = true
		return len(p), nil
	}
	total := len(p)
	if remaining := l.limit - l.n; int64(len(p)) > remaining {
		p = p[:remaining]
		l.limited = true
	}
	n, err := l.w.Write(p)
	l.n += int64(n)
	if err != nil {
		return n, err
	}
	return total, nil
}
