package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chessreel/internal/blobstore"
	"chessreel/internal/config"
	"chessreel/internal/encoding"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/render"
	"chessreel/internal/router"
	"chessreel/internal/services"
	"chessreel/internal/services/recognizer"
)

// Outcome summarizes what one event delivery produced.
type Outcome string

const (
	// OutcomeProcessed means the stage ran and advanced the job.
	OutcomeProcessed Outcome = "processed"
	// OutcomeSkipped means the event routed to a stage but the job was
	// already past it (duplicate delivery) or had no ledger record.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIgnored means the event is not pipeline input.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeFailed means the stage ran and hit an error; the failure is
	// recorded on the ledger record where possible.
	OutcomeFailed Outcome = "failed"
)

// Processor executes pipeline stages against incoming object events. One
// Processor serves the whole daemon; every invocation is independent.
type Processor struct {
	cfg        *config.Config
	store      *ledger.Store
	blobs      blobstore.Store
	encoder    encoding.Encoder
	renderer   render.Renderer
	recognizer recognizer.Client
	logger     *slog.Logger
}

// New wires a Processor from its collaborators.
func New(cfg *config.Config, store *ledger.Store, blobs blobstore.Store, encoder encoding.Encoder, renderer render.Renderer, recog recognizer.Client, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		cfg:        cfg,
		store:      store,
		blobs:      blobs,
		encoder:    encoder,
		renderer:   renderer,
		recognizer: recog,
		logger:     logging.NewComponentLogger(logger, "pipeline"),
	}
}

// HandleEvent routes one object finalize event to its stage and runs it.
// Redelivered events are safe: stages advance the ledger with
// advance-if-behind writes and skip work the job already finished.
func (p *Processor) HandleEvent(ctx context.Context, event blobstore.ObjectEvent) (Outcome, error) {
	decision := router.Route(router.Event{
		Path:        event.Path,
		ContentType: event.ContentType,
		Metadata:    event.Metadata,
	})
	if decision == nil {
		return OutcomeIgnored, nil
	}

	ctx = services.WithJobUUID(ctx, decision.UUID)
	ctx = services.WithStage(ctx, string(decision.Stage))
	logger := p.logger.With(
		logging.String(logging.FieldStage, string(decision.Stage)),
		logging.String(logging.FieldJobUUID, decision.UUID),
		logging.String(logging.FieldObjectPath, event.Path),
	)
	logger.Info("stage dispatch")

	switch decision.Stage {
	case router.StageGIFToVideo:
		return p.runGIFToVideo(ctx, logger, *decision, event)
	case router.StageTranscode:
		return p.runTranscode(ctx, logger, *decision, event)
	default:
		return OutcomeIgnored, nil
	}
}

// profile resolves the configured encoder profile.
func (p *Processor) profile() (encoding.Profile, error) {
	return encoding.ProfileFor(p.cfg.Encoding.Profile)
}

// failJob records a stage failure on the ledger record before the error
// propagates. The write is best effort; the original error always wins.
func (p *Processor) failJob(ctx context.Context, logger *slog.Logger, recordID int64, stageErr error) {
	diagnostic := services.Diagnostic(stageErr)
	if _, err := p.store.MarkError(ctx, recordID, diagnostic); err != nil {
		logger.Error("record stage failure", logging.Error(err))
	}
}

// outputVideoPath is where finished MP4s live in the object store.
func outputVideoPath(stem string) string {
	return "videos/" + stem + ".mp4"
}

// defaultGIFName names renders the caller did not name themselves.
func defaultGIFName() string {
	return fmt.Sprintf("pgn2gif_%d", time.Now().UnixMilli())
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".gif")
	if name == "" || strings.ContainsAny(name, "/\\") {
		return ""
	}
	return name
}
