package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// apiClient is a thin HTTP wrapper over the daemon API.
type apiClient struct {
	baseURL string
	client  *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

type jobView struct {
	ID            int64           `json:"id"`
	Kind          string          `json:"kind"`
	UUID          string          `json:"uuid"`
	UserID        string          `json:"userId"`
	State         string          `json:"state"`
	PGN           string          `json:"pgn"`
	Timestamps    json.RawMessage `json:"timestamps"`
	VideoPath     string          `json:"videoPath"`
	ThumbnailPath string          `json:"thumbnailPath"`
	ErrorMessage  string          `json:"errorMessage"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type statusView struct {
	Running      bool           `json:"running"`
	LedgerDBPath string         `json:"ledgerDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	Stats        map[string]int `json:"stats"`
	Dependencies []struct {
		Name      string `json:"Name"`
		Command   string `json:"Command"`
		Available bool   `json:"Available"`
		Detail    string `json:"Detail"`
	} `json:"dependencies"`
}

func (c *apiClient) get(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) postJSON(path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *apiClient) status() (*statusView, error) {
	var status statusView
	if err := c.get("/api/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *apiClient) listJobs(kind string, states []string) ([]jobView, error) {
	query := url.Values{}
	if kind != "" {
		query.Set("kind", kind)
	}
	for _, state := range states {
		query.Add("state", state)
	}
	path := "/api/v1/jobs"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var payload struct {
		Jobs []jobView `json:"jobs"`
	}
	if err := c.get(path, &payload); err != nil {
		return nil, err
	}
	return payload.Jobs, nil
}

func (c *apiClient) getJob(kind, uuid string) (*jobView, error) {
	var job jobView
	if err := c.get(fmt.Sprintf("/api/v1/jobs/%s/%s", kind, uuid), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) createJob(kind, uuid, userID string) (*jobView, error) {
	var job jobView
	err := c.postJSON("/api/v1/jobs", map[string]string{
		"kind":   kind,
		"uuid":   uuid,
		"userId": userID,
	}, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *apiClient) createGIF(uuid, userID, pgn, fileName string, flipped bool) (string, error) {
	var result struct {
		Success bool   `json:"success"`
		Path    string `json:"path"`
	}
	err := c.postJSON("/api/v1/gifs", map[string]any{
		"uuid":     uuid,
		"userId":   userID,
		"pgn":      pgn,
		"fileName": fileName,
		"flipped":  flipped,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Path, nil
}

func (c *apiClient) uploadVideo(videoPath, uuid, userID string, generatePGN bool) (*jobView, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(videoPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("read video: %w", err)
	}
	fields := map[string]string{
		"uuid":        uuid,
		"userId":      userID,
		"generatePgn": fmt.Sprintf("%t", generatePGN),
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	resp, err := c.client.Post(c.baseURL+"/api/v1/videos", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()

	var job jobView
	if err := decodeResponse(resp, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
