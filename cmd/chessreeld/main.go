package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"chessreel/internal/blobstore"
	"chessreel/internal/config"
	"chessreel/internal/daemon"
	"chessreel/internal/deps"
	"chessreel/internal/encoding"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/pipeline"
	"chessreel/internal/render"
	"chessreel/internal/services/recognizer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		if !status.Available && !status.Optional {
			logger.Warn("external dependency unavailable",
				logging.String("name", status.Name),
				logging.String("detail", status.Detail),
			)
		}
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return
	}

	blobs, err := blobstore.NewDirStore(cfg.Paths.BucketDir, cfg.Blobstore.PublicBaseURL,
		blobstore.WithLogger(logging.NewComponentLogger(logger, "blobstore")))
	if err != nil {
		logger.Error("open blob store", logging.Error(err))
		return
	}
	defer blobs.Close()

	encoder := encoding.NewFFmpeg(
		encoding.WithBinary(cfg.Encoding.FFmpegBinary),
		encoding.WithTimeout(time.Duration(cfg.Encoding.TimeoutSeconds)*time.Second),
		encoding.WithLogger(logger),
	)
	renderer := render.NewCLI(
		render.WithBinary(cfg.Render.Pgn2GifBinary),
		render.WithTimeout(time.Duration(cfg.Render.TimeoutSeconds)*time.Second),
	)
	recog := recognizer.NewConfiguredClient(cfg)

	processor := pipeline.New(cfg, store, blobs, encoder, renderer, recog, logger)

	d, err := daemon.New(cfg, store, blobs, processor, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("chessreeld shutting down")
}
