package staging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessreel/internal/logging"
	"chessreel/internal/staging"
	"chessreel/internal/testsupport"
)

func TestScopeLifecycle(t *testing.T) {
	base := t.TempDir()
	scope, err := staging.NewScope(base, logging.NewNop())
	if err != nil {
		t.Fatalf("NewScope failed: %v", err)
	}

	if info, err := os.Stat(scope.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("scope directory missing: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(scope.Dir()), "scope-") {
		t.Fatalf("unexpected scope name %q", scope.Dir())
	}

	first := scope.Acquire("source", ".gif")
	second := scope.Acquire("source", ".gif")
	if first == second {
		t.Fatal("acquired paths must be unique")
	}
	if filepath.Dir(first) != scope.Dir() {
		t.Fatalf("acquired path outside scope: %q", first)
	}
	if !strings.HasSuffix(first, ".gif") {
		t.Fatalf("extension not applied: %q", first)
	}

	testsupport.WriteFile(t, first, 16)

	scope.Close()
	if _, err := os.Stat(scope.Dir()); !os.IsNotExist(err) {
		// Dir() is empty after a successful close; check the base instead.
		entries, readErr := os.ReadDir(base)
		if readErr != nil {
			t.Fatalf("read base: %v", readErr)
		}
		if len(entries) != 0 {
			t.Fatalf("scope not removed, base contains %d entries", len(entries))
		}
	}
	scope.Close() // safe to call twice
}

func TestAcquireNormalizesInputs(t *testing.T) {
	scope, err := staging.NewScope(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewScope failed: %v", err)
	}
	defer scope.Close()

	path := scope.Acquire("", "mp4")
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "file-") || !strings.HasSuffix(base, ".mp4") {
		t.Fatalf("inputs not normalized: %q", base)
	}
}

func TestCleanStaleRemovesOldScopes(t *testing.T) {
	base := t.TempDir()

	stale := filepath.Join(base, "scope-stale")
	fresh := filepath.Join(base, "scope-fresh")
	unrelated := filepath.Join(base, "keepme")
	for _, dir := range []string{stale, fresh, unrelated} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	result := staging.CleanStale(base, 24*time.Hour, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected cleanup errors: %#v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != stale {
		t.Fatalf("unexpected removals: %#v", result.Removed)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale scope should be removed")
	}
	for _, dir := range []string{fresh, unrelated} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("%s should survive cleanup: %v", dir, err)
		}
	}
}

func TestCleanStaleMissingDir(t *testing.T) {
	result := staging.CleanStale(filepath.Join(t.TempDir(), "absent"), time.Hour, nil)
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("missing staging dir should be a no-op: %#v", result)
	}
}
