package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chessreel/internal/config"
	"chessreel/internal/daemon"
	"chessreel/internal/encoding"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/pipeline"
	"chessreel/internal/services/recognizer"
	"chessreel/internal/testsupport"
)

const validNotation = "1. e4 e5 2. Nf3 Nc6"

type fakeEncoder struct{}

func (fakeEncoder) Encode(ctx context.Context, inputPath, outputPath string, profile encoding.Profile) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("encoded"), 0o644)
}

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, pgn string, flipped bool) ([]byte, error) {
	return []byte("GIF89a"), nil
}

type fakeRecognizer struct{}

func (fakeRecognizer) Recognize(ctx context.Context, videoURL string) (recognizer.Result, error) {
	return recognizer.Result{PGN: validNotation, Timestamps: []float64{0, 2}}, nil
}

func startDaemon(t *testing.T) (*daemon.Daemon, *config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	blobs := testsupport.MustOpenBlobstore(t, cfg)
	proc := pipeline.New(cfg, store, blobs, fakeEncoder{}, fakeRenderer{}, fakeRecognizer{}, logging.NewNop())

	d, err := daemon.New(cfg, store, blobs, proc, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("api server did not bind")
	}
	return d, cfg, "http://" + addr
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func pollJob(t *testing.T, baseURL, kind, uuid string, want ledger.State) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	url := fmt.Sprintf("%s/api/v1/jobs/%s/%s", baseURL, kind, uuid)
	var last map[string]any
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("GET %s: %v", url, err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			last = map[string]any{}
			if err := json.Unmarshal(data, &last); err != nil {
				t.Fatalf("decode job payload: %v", err)
			}
			if last["state"] == string(want) {
				return last
			}
			if last["state"] == string(ledger.StateError) && want != ledger.StateError {
				t.Fatalf("job failed: %v", last["errorMessage"])
			}
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("job %s/%s never reached %s, last payload %v", kind, uuid, want, last)
	return nil
}

func TestHealthEndpoint(t *testing.T) {
	_, _, baseURL := startDaemon(t)
	resp, err := http.Get(baseURL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	_, cfg, _ := startDaemon(t)

	store := testsupport.MustOpenLedger(t, cfg)
	blobs := testsupport.MustOpenBlobstore(t, cfg)
	proc := pipeline.New(cfg, store, blobs, fakeEncoder{}, fakeRenderer{}, fakeRecognizer{}, logging.NewNop())
	second, err := daemon.New(cfg, store, blobs, proc, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second instance should be refused")
	}
}

func TestGIFJobEndToEnd(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	resp, body := postJSON(t, baseURL+"/api/v1/jobs", map[string]string{
		"kind":   "gif",
		"userId": "user-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create job returned %d: %s", resp.StatusCode, body)
	}
	var created struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.UUID == "" {
		t.Fatalf("create job payload: %s err=%v", body, err)
	}

	resp, body = postJSON(t, baseURL+"/api/v1/gifs", map[string]any{
		"uuid":     created.UUID,
		"userId":   "user-1",
		"pgn":      validNotation,
		"fileName": "endtoend",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create gif returned %d: %s", resp.StatusCode, body)
	}

	job := pollJob(t, baseURL, "gif", created.UUID, ledger.StateCompleted)
	if job["videoPath"] != "videos/endtoend.mp4" {
		t.Fatalf("unexpected video path %v", job["videoPath"])
	}
}

func TestCreateDuplicateJobConflicts(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	payload := map[string]string{"kind": "gif", "uuid": "dup-1", "userId": "user-1"}
	if resp, body := postJSON(t, baseURL+"/api/v1/jobs", payload); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first create returned %d: %s", resp.StatusCode, body)
	}
	if resp, _ := postJSON(t, baseURL+"/api/v1/jobs", payload); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate create should conflict, got %d", resp.StatusCode)
	}
}

func TestCreateGIFWithInvalidNotation(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	postJSON(t, baseURL+"/api/v1/jobs", map[string]string{"kind": "gif", "uuid": "bad-1", "userId": "u"})
	resp, _ := postJSON(t, baseURL+"/api/v1/gifs", map[string]any{
		"uuid":   "bad-1",
		"userId": "u",
		"pgn":    "not chess",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid notation, got %d", resp.StatusCode)
	}
}

func uploadVideo(t *testing.T, baseURL string, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "game.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("raw phone video")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	resp, err := http.Post(baseURL+"/api/v1/videos", writer.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST videos: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func TestUploadVideoEndToEnd(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	resp, body := uploadVideo(t, baseURL, map[string]string{
		"uuid":        "up-1",
		"userId":      "user-9",
		"generatePgn": "false",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}

	job := pollJob(t, baseURL, "video", "up-1", ledger.StateCompleted)
	if job["videoPath"] != "videos/up-1.mp4" {
		t.Fatalf("unexpected video path %v", job["videoPath"])
	}
	if job["thumbnailPath"] != "videos/up-1.mp4" {
		t.Fatalf("unexpected thumbnail path %v", job["thumbnailPath"])
	}
}

func TestUploadStagingFailureMarksJobErrored(t *testing.T) {
	_, cfg, baseURL := startDaemon(t)

	if err := os.RemoveAll(cfg.Paths.StagingDir); err != nil {
		t.Fatalf("remove staging dir: %v", err)
	}

	resp, body := uploadVideo(t, baseURL, map[string]string{
		"uuid":        "up-4",
		"userId":      "user-9",
		"generatePgn": "false",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 when staging fails, got %d: %s", resp.StatusCode, body)
	}

	job := pollJob(t, baseURL, "video", "up-4", ledger.StateError)
	if job["errorMessage"] == "" || job["errorMessage"] == nil {
		t.Fatal("failed upload should persist a diagnostic")
	}
}

func TestUploadVideoWithNotationExtraction(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	resp, body := uploadVideo(t, baseURL, map[string]string{
		"uuid":        "up-2",
		"userId":      "user-9",
		"generatePgn": "true",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload returned %d: %s", resp.StatusCode, body)
	}

	job := pollJob(t, baseURL, "pgn", "up-2", ledger.StateCompleted)
	if job["pgn"] != validNotation {
		t.Fatalf("notation missing from job payload: %v", job["pgn"])
	}
}

func TestUploadVideoExtractionRequiresUser(t *testing.T) {
	_, _, baseURL := startDaemon(t)

	resp, _ := uploadVideo(t, baseURL, map[string]string{
		"uuid":        "up-3",
		"generatePgn": "true",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without userId, got %d", resp.StatusCode)
	}
}

func TestObjectsAreServed(t *testing.T) {
	_, cfg, baseURL := startDaemon(t)

	blobPath := filepath.Join(cfg.Paths.BucketDir, "videos", "served.mp4")
	testsupport.WriteFile(t, blobPath, 64)

	resp, err := http.Get(baseURL + "/objects/videos/served.mp4")
	if err != nil {
		t.Fatalf("GET object: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("object fetch returned %d", resp.StatusCode)
	}
}
