package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"chessreel/internal/config"
	"chessreel/internal/services"
)

// HTTPDoer describes the HTTP client used by the recognizer service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result carries the notation recovered from a published video.
type Result struct {
	PGN        string
	Timestamps []float64
}

// Client defines the board-recognition behaviour.
type Client interface {
	Recognize(ctx context.Context, videoURL string) (Result, error)
}

type httpClient struct {
	baseURL string
	client  HTTPDoer
}

// NewConfiguredClient builds a recognizer client from configuration.
func NewConfiguredClient(cfg *config.Config) Client {
	timeout := time.Duration(cfg.Recognizer.TimeoutSeconds) * time.Second
	return NewHTTPClient(cfg.Recognizer.BaseURL, &http.Client{Timeout: timeout})
}

// NewHTTPClient constructs an HTTP-backed recognizer client.
func NewHTTPClient(baseURL string, client HTTPDoer) Client {
	return &httpClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  client,
	}
}

func (c *httpClient) Recognize(ctx context.Context, videoURL string) (Result, error) {
	if strings.TrimSpace(videoURL) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "recognize", "", "video URL required", nil)
	}
	if c == nil || c.client == nil || c.baseURL == "" {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "", "recognizer not configured", nil)
	}

	payload, err := json.Marshal(map[string]string{"url": videoURL})
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "encode request", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "call recognizer", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "read response", "", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(string(body))
		if len(detail) > 200 {
			detail = detail[:200]
		}
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "call recognizer",
			"recognizer returned "+resp.Status+": "+detail, nil)
	}

	var decoded struct {
		PGN        string    `json:"pgn"`
		Timestamps []float64 `json:"timestamps"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "decode response", "", err)
	}
	if strings.TrimSpace(decoded.PGN) == "" {
		return Result{}, services.Wrap(services.ErrUpstream, "recognize", "decode response", "response missing notation", nil)
	}
	return Result{PGN: decoded.PGN, Timestamps: decoded.Timestamps}, nil
}

var _ Client = (*httpClient)(nil)
