package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chessreel/internal/daemon"
	"chessreel/internal/encoding"
	"chessreel/internal/logging"
	"chessreel/internal/pipeline"
	"chessreel/internal/services/recognizer"
	"chessreel/internal/testsupport"
)

type cliEncoder struct{}

func (cliEncoder) Encode(ctx context.Context, inputPath, outputPath string, profile encoding.Profile) error {
	return os.WriteFile(outputPath, []byte("encoded"), 0o644)
}

type cliRenderer struct{}

func (cliRenderer) Render(ctx context.Context, pgn string, flipped bool) ([]byte, error) {
	return []byte("GIF89a"), nil
}

type cliRecognizer struct{}

func (cliRecognizer) Recognize(ctx context.Context, videoURL string) (recognizer.Result, error) {
	return recognizer.Result{PGN: "1. e4 e5", Timestamps: []float64{0}}, nil
}

func startTestDaemon(t *testing.T) string {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	blobs := testsupport.MustOpenBlobstore(t, cfg)
	proc := pipeline.New(cfg, store, blobs, cliEncoder{}, cliRenderer{}, cliRecognizer{}, logging.NewNop())

	d, err := daemon.New(cfg, store, blobs, proc, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return "http://" + d.APIAddr()
}

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestJobsEmpty(t *testing.T) {
	baseURL := startTestDaemon(t)
	out, err := runCLI(t, []string{"jobs", "--api", baseURL})
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "No jobs found")
}

func TestGIFSubmission(t *testing.T) {
	baseURL := startTestDaemon(t)

	pgnPath := filepath.Join(t.TempDir(), "game.pgn")
	if err := os.WriteFile(pgnPath, []byte("1. e4 e5 2. Nf3 Nc6"), 0o644); err != nil {
		t.Fatalf("write notation: %v", err)
	}

	out, err := runCLI(t, []string{"gif", pgnPath, "--user", "user-1", "--name", "clitest", "--api", baseURL})
	if err != nil {
		t.Fatalf("gif: %v", err)
	}
	requireContains(t, out, "Submitted job")
	requireContains(t, out, "gifs/clitest.gif")

	out, err = runCLI(t, []string{"jobs", "--api", baseURL, "--kind", "gif"})
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "gif")
}

func TestGIFRequiresUser(t *testing.T) {
	pgnPath := filepath.Join(t.TempDir(), "game.pgn")
	if err := os.WriteFile(pgnPath, []byte("1. e4"), 0o644); err != nil {
		t.Fatalf("write notation: %v", err)
	}
	if _, err := runCLI(t, []string{"gif", pgnPath, "--api", "http://127.0.0.1:1"}); err == nil {
		t.Fatal("expected error without --user")
	}
}
