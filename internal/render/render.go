package render

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"chessreel/internal/services"
)

var commandContext = exec.CommandContext

// Renderer turns validated game notation into an animated board GIF.
type Renderer interface {
	Render(ctx context.Context, pgn string, flipped bool) ([]byte, error)
}

// Option configures the CLI renderer.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds one render invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the pgn2gif command-line renderer. The binary reads a .pgn file
// and writes a .gif next to it, so each invocation runs inside its own
// scratch directory.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI renderer using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "pgn2gif"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Render launches pgn2gif against a scratch copy of the notation and returns
// the produced GIF bytes.
func (c *CLI) Render(ctx context.Context, pgn string, flipped bool) ([]byte, error) {
	if strings.TrimSpace(pgn) == "" {
		return nil, services.Wrap(services.ErrValidation, "render", "", "empty game notation", nil)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	workDir, err := os.MkdirTemp("", "chessreel-render-*")
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "create scratch dir", "", err)
	}
	defer os.RemoveAll(workDir)

	pgnPath := filepath.Join(workDir, "game.pgn")
	if err := os.WriteFile(pgnPath, []byte(pgn), 0o644); err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "write notation", "", err)
	}

	args := []string{"--path", pgnPath, "--out", workDir}
	if flipped {
		args = append(args, "--reverse")
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, services.Wrap(services.ErrTransient, "render", "pgn2gif", strings.TrimSpace(stderr.String()), ctxErr)
		}
		return nil, services.Wrap(services.ErrTransient, "render", "pgn2gif", strings.TrimSpace(stderr.String()), err)
	}

	gifPath := filepath.Join(workDir, "game.gif")
	data, err := os.ReadFile(gifPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "render", "pgn2gif", "process exited cleanly but produced no GIF", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrTransient, "render", "pgn2gif", "produced an empty GIF", nil)
	}
	return data, nil
}

var _ Renderer = (*CLI)(nil)
