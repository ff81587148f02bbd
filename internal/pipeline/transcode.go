package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"

	"chessreel/internal/blobstore"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/router"
	"chessreel/internal/services"
	"chessreel/internal/staging"
)

// runTranscode normalizes an uploaded game video into the shared MP4 layout.
// When the upload requested notation extraction the published video is handed
// to the recognizer and the recovered notation lands on the same record.
func (p *Processor) runTranscode(ctx context.Context, logger *slog.Logger, decision router.Decision, event blobstore.ObjectEvent) (Outcome, error) {
	kind := ledger.KindVideo
	working := ledger.StateConverting
	if decision.GeneratePGN {
		kind = ledger.KindPGN
		working = ledger.StateProcessing
	}
	ctx = services.WithJobKind(ctx, string(kind))
	logger = logger.With(logging.String(logging.FieldJobKind, string(kind)))

	record, err := p.store.FindByUUID(ctx, kind, decision.UUID)
	if err != nil {
		return OutcomeFailed, err
	}
	if record == nil {
		logger.Warn("no job record for uploaded video, skipping")
		return OutcomeSkipped, nil
	}

	advanced, err := p.store.Advance(ctx, record.ID, working, ledger.Fields{})
	if err != nil {
		return OutcomeFailed, err
	}
	if !advanced {
		logger.Info("job already in flight, duplicate delivery skipped")
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

	input := scope.Acquire("upload", ".mp4")
	if err := p.blobs.Download(ctx, event.Path, input); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	output := scope.Acquire("encoded", ".mp4")
	if err := p.encoder.Encode(ctx, input, output, profile); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	// Event metadata may lack the uploader identity; the job record is the
	// authoritative source for it.
	userID := decision.UserID
	if userID == "" {
		userID = record.UserID
	}

	target := outputVideoPath(decision.UUID)
	opts := blobstore.PutOptions{ContentType: "video/mp4"}
	if userID != "" {
		opts.Metadata = map[string]string{"userId": userID}
	}
	if err := p.blobs.Upload(ctx, output, target, opts); err != nil {
		p.failJob(ctx, logger, record.ID, err)
		return OutcomeFailed, err
	}

	fields := ledger.Fields{VideoPath: target}
	if decision.GeneratePGN {
		result, err := p.recognizer.Recognize(ctx, p.blobs.PublicURL(target))
		if err != nil {
			p.failJob(ctx, logger, record.ID, err)
			return OutcomeFailed, err
		}
		timestamps, err := json.Marshal(result.Timestamps)
		if err != nil {
			p.failJob(ctx, logger, record.ID, err)
			return OutcomeFailed, err
		}
		fields.PGNContent = result.PGN
		fields.TimestampsJSON = string(timestamps)
	} else {
		// Players preview the clip from its first frame, so the published
		// video doubles as its own thumbnail locator.
		fields.ThumbnailPath = target
	}

	if _, err := p.store.Advance(ctx, record.ID, ledger.StateCompleted, fields); err != nil {
		return OutcomeFailed, err
	}
	logger.Info("video published", logging.String("video_path", target))
	return OutcomeProcessed, nil
}
