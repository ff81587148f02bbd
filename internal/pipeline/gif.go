package pipeline

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"chessreel/internal/blobstore"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/render"
	"chessreel/internal/router"
	"chessreel/internal/services"
	"chessreel/internal/staging"
)

// GIFRequest describes one notation-to-GIF render submission.
type GIFRequest struct {
	UUID       string
	UserID     string
	PGNContent string
	FileName   string
	Flipped    bool
}

// CreateGIF validates the submitted notation, renders the board GIF, and
// writes it into the object store. The finalize event of that write is what
// triggers the video conversion stage; this method itself leaves the ledger
// record in its received state. Returns the stored object path.
func (p *Processor) CreateGIF(ctx context.Context, req GIFRequest) (string, error) {
	if strings.TrimSpace(req.UUID) == "" {
		return "", services.Wrap(services.ErrValidation, "create-gif", "", "uuid required", nil)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return "", services.Wrap(services.ErrValidation, "create-gif", "", "userId required", nil)
	}
	if _, err := render.ParseMoves(req.PGNContent); err != nil {
		return "", err
	}

	record, err := p.store.FindByUUID(ctx, ledger.KindGIF, req.UUID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", services.Wrap(services.ErrNotFound, "create-gif", "", "no job record for uuid "+req.UUID, nil)
	}

	logger := p.logger.With(
		logging.String(logging.FieldStage, "create-gif"),
		logging.String(logging.FieldJobUUID, req.UUID),
	)

	data, err := p.renderer.Render(ctx, req.PGNContent, req.Flipped)
	if err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return "", err
	}

	name := sanitizeFileName(req.FileName)
	if name == "" {
		name = defaultGIFName()
	}
	objectPath := "gifs/" + name + ".gif"
	opts := blobstore.PutOptions{
		ContentType: "image/gif",
		Metadata: map[string]string{
			"uuid":   req.UUID,
			"userId": req.UserID,
		},
	}
	if err := p.blobs.Save(ctx, objectPath, data, opts); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return "", err
	}

	logger.Info("board gif stored", logging.String(logging.FieldObjectPath, objectPath))
	return objectPath, nil
}

// runGIFToVideo converts a stored board GIF into a shareable MP4 and
// completes the job.
func (p *Processor) runGIFToVideo(ctx context.Context, logger *slog.Logger, decision router.Decision, event blobstore.ObjectEvent) (Outcome, error) {
	record, err := p.store.FindByUUID(ctx, ledger.KindGIF, decision.UUID)
	if err != nil {
		return OutcomeFailed, err
	}
	if record == nil {
		logger.Warn("no job record for gif event, skipping")
		return OutcomeSkipped, nil
	}

	advanced, err := p.store.Advance(ctx, record.ID, ledger.StateConverting, ledger.Fields{})
	if err != nil {
		return OutcomeFailed, err
	}
	if !advanced {
		logger.Info("job already past conversion, duplicate delivery skipped")
		return OutcomeSkipped, nil
	}

	profile, err := p.profile()
	if err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	scope, err := staging.NewScope(p.cfg.Paths.StagingDir, logger)
	if err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}
	defer scope.Close()

	input := scope.Acquire("source", ".gif")
	if err := p.blobs.Download(ctx, event.Path, input); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	output := scope.Acquire("encoded", ".mp4")
	if err := p.encoder.Encode(ctx, input, output, profile); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	base := path.Base(event.Path)
	stem := strings.TrimSuffix(base, path.Ext(base))
	target := outputVideoPath(stem)
	opts := blobstore.PutOptions{
		ContentType: "video/mp4",
		Metadata:    map[string]string{"userId": decision.UserID},
	}
	if err := p.blobs.Upload(ctx, output, target, opts); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	if _, err := p.store.Advance(ctx, record.ID, ledger.StateCompleted, ledger.Fields{VideoPath: target}); err != nil {
		return OutcomeFailed, err
	}
	logger.Info("gif converted", logging.String("video_path", target))
	return OutcomeProcessed, nil
}
