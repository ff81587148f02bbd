package encoding

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chessreel/internal/services"
)

func TestProfileForResolvesKnownProfiles(t *testing.T) {
	for _, name := range []string{"compat", "Compat", " compact "} {
		if _, err := ProfileFor(name); err != nil {
			t.Fatalf("ProfileFor(%q) returned error: %v", name, err)
		}
	}
	if _, err := ProfileFor("turbo"); err == nil {
		t.Fatal("expected error for unknown profile")
	}
}

func TestProfileArgs(t *testing.T) {
	profile, err := ProfileFor("compat")
	if err != nil {
		t.Fatalf("ProfileFor failed: %v", err)
	}
	args := profile.Args("/in/source.gif", "/out/result.mp4")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-i /in/source.gif",
		"-movflags faststart",
		"-pix_fmt yuv420p",
		"-c:v libx265",
		"-crf 10",
		"-vtag hvc1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "/out/result.mp4" {
		t.Errorf("output path should be the final argument, got %q", args[len(args)-1])
	}
	if !strings.Contains(joined, "pad=iw:ceil(iw*16/9)") {
		t.Errorf("args missing pad filter: %s", joined)
	}
}

func TestEncodeSuccess(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.mp4")

	restore := stubCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if err := os.WriteFile(output, []byte("mp4"), 0o644); err != nil {
			t.Fatalf("write stub output: %v", err)
		}
		return exec.CommandContext(ctx, "true")
	})
	defer restore()

	profile, _ := ProfileFor("compat")
	enc := NewFFmpeg(WithTimeout(5 * time.Second))
	if err := enc.Encode(context.Background(), filepath.Join(dir, "in.gif"), output, profile); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
}

func TestEncodeFailureRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.mp4")

	restore := stubCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
			t.Fatalf("write partial output: %v", err)
		}
		return exec.CommandContext(ctx, "false")
	})
	defer restore()

	profile, _ := ProfileFor("compat")
	enc := NewFFmpeg()
	err := enc.Encode(context.Background(), filepath.Join(dir, "in.gif"), output, profile)
	if err == nil {
		t.Fatal("expected encode failure")
	}
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected encode marker, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("partial output should be removed, stat returned %v", statErr)
	}
}

func TestEncodeRejectsEmptyPaths(t *testing.T) {
	enc := NewFFmpeg()
	profile, _ := ProfileFor("compat")
	if err := enc.Encode(context.Background(), "", "/out.mp4", profile); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty input, got %v", err)
	}
	if err := enc.Encode(context.Background(), "/in.gif", "", profile); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty output, got %v", err)
	}
}

func TestEncodeFailsWhenNoOutputProduced(t *testing.T) {
	dir := t.TempDir()
	restore := stubCommandContext(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	})
	defer restore()

	profile, _ := ProfileFor("compat")
	enc := NewFFmpeg()
	err := enc.Encode(context.Background(), filepath.Join(dir, "in.gif"), filepath.Join(dir, "missing.mp4"), profile)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected encode error when output absent, got %v", err)
	}
}

func stubCommandContext(t *testing.T, fn func(context.Context, string, ...string) *exec.Cmd) func() {
	t.Helper()
	original := commandContext
	commandContext = fn
	return func() { commandContext = original }
}

func TestStderrTail(t *testing.T) {
	long := strings.Repeat("noise\n", 10) + "line-a\nline-b\n"
	tail := stderrTail(long)
	if strings.Count(tail, "\n") > 4 {
		t.Fatalf("tail kept too many lines: %q", tail)
	}
	if !strings.HasSuffix(tail, "line-b") {
		t.Fatalf("tail should end with the last line, got %q", tail)
	}
	if got := stderrTail("   \n  "); got != "ffmpeg failed without diagnostics" {
		t.Fatalf("empty tail fallback wrong: %q", got)
	}
}
