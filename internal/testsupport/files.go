package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with size bytes of filler, creating parent
// directories as needed. Fixtures here stand in for small media files,
// so the content is an arbitrary repeating byte. A size <= 0 writes a
// single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x5c}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
