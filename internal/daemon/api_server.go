package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"chessreel/internal/blobstore"
	"chessreel/internal/config"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/pipeline"
	"chessreel/internal/services"
)

const maxUploadBytes = 256 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type jobPayload struct {
	ID            int64           `json:"id"`
	Kind          string          `json:"kind"`
	UUID          string          `json:"uuid"`
	UserID        string          `json:"userId,omitempty"`
	State         string          `json:"state"`
	PGN           string          `json:"pgn,omitempty"`
	Timestamps    json.RawMessage `json:"timestamps,omitempty"`
	VideoPath     string          `json:"videoPath,omitempty"`
	ThumbnailPath string          `json:"thumbnailPath,omitempty"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func jobFromRecord(record *ledger.Record) jobPayload {
	payload := jobPayload{
		ID:            record.ID,
		Kind:          string(record.Kind),
		UUID:          record.UUID,
		UserID:        record.UserID,
		State:         string(record.State),
		PGN:           record.PGNContent,
		VideoPath:     record.VideoPath,
		ThumbnailPath: record.ThumbnailPath,
		ErrorMessage:  record.ErrorMessage,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if record.TimestampsJSON != "" {
		payload.Timestamps = json.RawMessage(record.TimestampsJSON)
	}
	return payload
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/v1/health", srv.handleHealth)
	r.Get("/api/v1/status", srv.handleStatus)
	r.Post("/api/v1/jobs", srv.handleCreateJob)
	r.Get("/api/v1/jobs", srv.handleListJobs)
	r.Get("/api/v1/jobs/{kind}/{uuid}", srv.handleGetJob)
	r.Post("/api/v1/gifs", srv.handleCreateGIF)
	r.Post("/api/v1/videos", srv.handleUploadVideo)

	// Serves the bucket directly so the public URLs the recognizer receives
	// resolve without a separate file server.
	fileServer := http.StripPrefix("/objects/", http.FileServer(http.Dir(cfg.Paths.BucketDir)))
	r.Get("/objects/*", fileServer.ServeHTTP)

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       120 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"running":      status.Running,
		"ledgerDbPath": status.LedgerDBPath,
		"lockFilePath": status.LockFilePath,
		"stats": map[string]int{
			"total":     status.Stats.Total,
			"received":  status.Stats.Received,
			"inFlight":  status.Stats.InFlight,
			"completed": status.Stats.Completed,
			"errored":   status.Stats.Errored,
		},
		"dependencies": status.Dependencies,
	})
}

func (s *apiServer) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind   string `json:"kind"`
		UUID   string `json:"uuid"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, ok := ledger.ParseKind(req.Kind)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", req.Kind))
		return
	}
	if strings.TrimSpace(req.UUID) == "" {
		req.UUID = uuid.NewString()
	}

	record, err := s.daemon.store.Create(r.Context(), kind, req.UUID, strings.TrimSpace(req.UserID))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, jobFromRecord(record))
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	kindParam := strings.TrimSpace(r.URL.Query().Get("kind"))
	var kinds []ledger.Kind
	if kindParam != "" {
		kind, ok := ledger.ParseKind(kindParam)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job kind %q", kindParam))
			return
		}
		kinds = append(kinds, kind)
	} else {
		for _, kind := range []ledger.Kind{ledger.KindGIF, ledger.KindPGN, ledger.KindVideo} {
			kinds = append(kinds, kind)
		}
	}

	var states []ledger.State
	for _, value := range r.URL.Query()["state"] {
		state, ok := ledger.ParseState(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown state %q", value))
			return
		}
		states = append(states, state)
	}

	jobs := make([]jobPayload, 0)
	for _, kind := range kinds {
		records, err := s.daemon.store.List(r.Context(), kind, states...)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		for _, record := range records {
			jobs = append(jobs, jobFromRecord(record))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	kind, ok := ledger.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown job kind")
		return
	}
	record, err := s.daemon.store.FindByUUID(r.Context(), kind, chi.URLParam(r, "uuid"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if record == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, jobFromRecord(record))
}

func (s *apiServer) handleCreateGIF(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID     string `json:"uuid"`
		UserID   string `json:"userId"`
		PGN      string `json:"pgn"`
		FileName string `json:"fileName"`
		Flipped  bool   `json:"flipped"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	objectPath, err := s.daemon.processor.CreateGIF(r.Context(), pipeline.GIFRequest{
		UUID:       req.UUID,
		UserID:     req.UserID,
		PGNContent: req.PGN,
		FileName:   req.FileName,
		Flipped:    req.Flipped,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": objectPath})
}

func (s *apiServer) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	generatePGN := strings.EqualFold(r.FormValue("generatePgn"), "true")
	userID := strings.TrimSpace(r.FormValue("userId"))
	if generatePGN && userID == "" {
		s.writeError(w, http.StatusBadRequest, "userId required for notation extraction")
		return
	}
	jobUUID := strings.TrimSpace(r.FormValue("uuid"))
	if jobUUID == "" {
		jobUUID = uuid.NewString()
	}

	kind := ledger.KindVideo
	if generatePGN {
		kind = ledger.KindPGN
	}
	record, err := s.daemon.store.Create(r.Context(), kind, jobUUID, userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// The record must exist before the upload finalizes or the triggered
	// stage finds nothing to advance.
	if err := s.stageUpload(r.Context(), file, jobUUID, userID, generatePGN); err != nil {
		s.logger.Error("stage upload", logging.Error(err),
			logging.String(logging.FieldJobUUID, jobUUID))
		// The object never finalized, so no stage will ever touch this
		// record. Best effort, the client already gets the failure.
		if _, markErr := s.daemon.store.MarkError(r.Context(), record.ID, services.Diagnostic(err)); markErr != nil {
			s.logger.Warn("mark upload failure", logging.Error(markErr),
				logging.String(logging.FieldJobUUID, jobUUID))
		}
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, jobFromRecord(record))
}

func (s *apiServer) stageUpload(ctx context.Context, file io.Reader, jobUUID, userID string, generatePGN bool) error {
	tmp, err := os.CreateTemp(s.daemon.cfg.Paths.StagingDir, "upload-*.mp4")
	if err != nil {
		return fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, io.LimitReader(file, maxUploadBytes)); err != nil {
		tmp.Close()
		return fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close staging file: %w", err)
	}

	metadata := map[string]string{"generatePgn": "false"}
	if generatePGN {
		metadata["generatePgn"] = "true"
	}
	if userID != "" {
		metadata["userId"] = userID
	}
	objectPath := "tmp/" + filepath.Base(jobUUID) + ".mp4"
	return s.daemon.blobs.Upload(ctx, tmpPath, objectPath, blobstore.PutOptions{
		ContentType: "video/mp4",
		Metadata:    metadata,
	})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, services.Diagnostic(err))
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, services.Diagnostic(err))
	case errors.Is(err, services.ErrConflict), errors.Is(err, ledger.ErrDuplicate):
		s.writeError(w, http.StatusConflict, services.Diagnostic(err))
	default:
		s.writeError(w, http.StatusInternalServerError, services.Diagnostic(err))
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}
