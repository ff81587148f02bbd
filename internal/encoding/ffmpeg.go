package encoding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"chessreel/internal/logging"
	"chessreel/internal/services"
)

var commandContext = exec.CommandContext

// Encoder wraps one blocking external media transformation.
type Encoder interface {
	// Encode transcodes inputPath into outputPath using the given profile.
	// On failure the output file is guaranteed absent.
	Encode(ctx context.Context, inputPath, outputPath string, profile Profile) error
}

// Option configures the ffmpeg encoder.
type Option func(*FFmpeg)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.binary = binary
		}
	}
}

// WithTimeout bounds one encode invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(f *FFmpeg) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithLogger attaches a logger for process diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logging.NewComponentLogger(logger, "encoder")
		}
	}
}

// FFmpeg invokes the ffmpeg command line encoder. One invocation per stage
// execution; the struct holds no per-invocation state.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpeg constructs an FFmpeg encoder using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	enc := &FFmpeg{binary: "ffmpeg", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(enc)
	}
	return enc
}

// Encode runs one ffmpeg process and waits on its completion signal. A failed
// or interrupted run removes any partial output before returning, so callers
// never see a half-written file.
func (f *FFmpeg) Encode(ctx context.Context, inputPath, outputPath string, profile Profile) error {
	if strings.TrimSpace(inputPath) == "" {
		return services.Wrap(services.ErrValidation, "encode", "", "input path required", nil)
	}
	if strings.TrimSpace(outputPath) == "" {
		return services.Wrap(services.ErrValidation, "encode", "", "output path required", nil)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := profile.Args(inputPath, outputPath)
	f.logger.Info("launching ffmpeg",
		logging.String("profile", profile.Name),
		logging.String("input", inputPath),
		logging.String("output", outputPath),
	)

	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrEncode, "encode", "start ffmpeg", "", err)
	}
	if err := cmd.Wait(); err != nil {
		_ = os.Remove(outputPath)
		detail := stderrTail(stderr.String())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrEncode, "encode", "ffmpeg", detail, ctxErr)
		}
		return services.Wrap(services.ErrEncode, "encode", "ffmpeg", detail, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return services.Wrap(services.ErrEncode, "encode", "ffmpeg", "process exited cleanly but produced no output", err)
	}

	f.logger.Info("ffmpeg finished",
		logging.String("profile", profile.Name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// stderrTail keeps the last few lines of process diagnostics for the ledger.
func stderrTail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	const keep = 5
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		return "ffmpeg failed without diagnostics"
	}
	return tail
}

// CheckBinary reports whether the configured ffmpeg binary is resolvable.
func CheckBinary(binary string) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return errors.New("ffmpeg binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("binary %q not found", binary)
	}
	return nil
}

var _ Encoder = (*FFmpeg)(nil)
