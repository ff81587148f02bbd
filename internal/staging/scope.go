package staging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chessreel/internal/logging"
)

// Scope owns the local staging files for a single stage invocation. Every
// acquired path lives in one per-scope directory, removed in full by Close on
// every exit path. Removal failures are logged, never propagated, so cleanup
// cannot mask a stage's primary error.
type Scope struct {
	dir    string
	logger *slog.Logger
}

// NewScope creates a staging scope rooted in baseDir.
func NewScope(baseDir string, logger *slog.Logger) (*Scope, error) {
	baseDir = strings.TrimSpace(baseDir)
	if baseDir == "" {
		return nil, fmt.Errorf("staging directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir := filepath.Join(baseDir, "scope-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scope directory: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scope{dir: dir, logger: logger}, nil
}

// Acquire allocates a uniquely named file path for the given purpose. The file
// itself is not created; callers hand the path to downloads or encoders.
func (s *Scope) Acquire(prefix, ext string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "file"
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s%s", prefix, uuid.NewString(), ext))
}

// Dir returns the scope's private directory.
func (s *Scope) Dir() string {
	return s.dir
}

// Close removes the scope directory and everything acquired within it.
// Safe to call multiple times and on scopes whose files were never created.
func (s *Scope) Close() {
	if s == nil || s.dir == "" {
		return
	}
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("failed to remove staging scope",
			logging.String("path", s.dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
		)
		return
	}
	s.dir = ""
}
