package render

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"chessreel/internal/services"
)

func stubRenderCommand(t *testing.T, fn func(ctx context.Context, name string, args ...string) *exec.Cmd) {
	t.Helper()
	original := commandContext
	commandContext = fn
	t.Cleanup(func() { commandContext = original })
}

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestRenderProducesGIFBytes(t *testing.T) {
	var sawReverse bool
	stubRenderCommand(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		outDir := argValue(args, "--out")
		if outDir == "" {
			t.Fatal("missing --out argument")
		}
		for _, arg := range args {
			if arg == "--reverse" {
				sawReverse = true
			}
		}
		if err := os.WriteFile(filepath.Join(outDir, "game.gif"), []byte("GIF89a"), 0o644); err != nil {
			t.Fatalf("write stub gif: %v", err)
		}
		return exec.CommandContext(ctx, "true")
	})

	cli := NewCLI()
	data, err := cli.Render(context.Background(), "1. e4 e5", true)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if string(data) != "GIF89a" {
		t.Fatalf("unexpected gif bytes: %q", data)
	}
	if !sawReverse {
		t.Fatal("flipped render should pass --reverse")
	}
}

func TestRenderWritesNotationToScratchFile(t *testing.T) {
	const notation = "1. d4 d5"
	stubRenderCommand(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		pgnPath := argValue(args, "--path")
		contents, err := os.ReadFile(pgnPath)
		if err != nil {
			t.Fatalf("read notation file: %v", err)
		}
		if string(contents) != notation {
			t.Fatalf("notation file contents %q", contents)
		}
		outDir := argValue(args, "--out")
		if err := os.WriteFile(filepath.Join(outDir, "game.gif"), []byte("g"), 0o644); err != nil {
			t.Fatalf("write stub gif: %v", err)
		}
		return exec.CommandContext(ctx, "true")
	})

	cli := NewCLI()
	if _, err := cli.Render(context.Background(), notation, false); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
}

func TestRenderFailurePropagates(t *testing.T) {
	stubRenderCommand(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	})

	cli := NewCLI()
	if _, err := cli.Render(context.Background(), "1. e4", false); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestRenderRejectsEmptyNotation(t *testing.T) {
	cli := NewCLI()
	if _, err := cli.Render(context.Background(), "   ", false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderMissingOutput(t *testing.T) {
	stubRenderCommand(t, func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "true")
	})

	cli := NewCLI()
	if _, err := cli.Render(context.Background(), "1. e4", false); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error when no GIF produced, got %v", err)
	}
}
