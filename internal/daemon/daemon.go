package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"chessreel/internal/blobstore"
	"chessreel/internal/config"
	"chessreel/internal/deps"
	"chessreel/internal/ledger"
	"chessreel/internal/logging"
	"chessreel/internal/pipeline"
	"chessreel/internal/staging"
)

// Daemon coordinates the event watcher, staging cleanup, and the HTTP API,
// and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *ledger.Store
	blobs     *blobstore.DirStore
	processor *pipeline.Processor
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	LedgerDBPath string
	LockFilePath string
	Stats        ledger.Stats
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, blobs *blobstore.DirStore, processor *pipeline.Processor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || blobs == nil || processor == nil || logger == nil {
		return nil, errors.New("daemon requires config, ledger, blobstore, processor, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "chessreeld.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		blobs:     blobs,
		processor: processor,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and launches the watcher, cleanup loop, and
// HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another chessreel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.wg.Add(2)
	go d.watchEvents()
	go d.cleanupLoop()

	d.running.Store(true)
	d.logger.Info("chessreel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("chessreel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound address of the HTTP API, or empty when disabled.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports runtime information for operator tooling.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		LedgerDBPath: d.store.Path(),
		LockFilePath: d.lockPath,
		Dependencies: deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
	if stats, err := d.store.Summarize(ctx); err == nil {
		status.Stats = stats
	}
	return status
}

// watchEvents drains the blob store finalize stream. Each event is processed
// on its own goroutine under the configured invocation timeout so one slow
// encode never blocks delivery of the next event.
func (d *Daemon) watchEvents() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.blobs.Events():
			if !ok {
				return
			}
			d.wg.Add(1)
			go func(event blobstore.ObjectEvent) {
				defer d.wg.Done()
				d.handleEvent(event)
			}(event)
		}
	}
}

func (d *Daemon) handleEvent(event blobstore.ObjectEvent) {
	timeout := time.Duration(d.cfg.Workflow.InvocationTimeout) * time.Second
	ctx := d.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := d.processor.HandleEvent(ctx, event)
	logger := d.logger.With(
		logging.String(logging.FieldObjectPath, event.Path),
		logging.String(logging.FieldEventType, string(outcome)),
	)
	switch {
	case err != nil:
		logger.Error("event processing failed", logging.Error(err))
	case outcome == pipeline.OutcomeProcessed:
		logger.Info("event processed")
	default:
		logger.Debug("event not processed")
	}
}

// cleanupLoop removes stale staging scopes left behind by interrupted
// invocations.
func (d *Daemon) cleanupLoop() {
	defer d.wg.Done()
	interval := time.Duration(d.cfg.Workflow.CleanupInterval) * time.Second
	if interval <= 0 {
		return
	}
	maxAge := time.Duration(d.cfg.Workflow.StagingMaxAgeHours) * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			result := staging.CleanStale(d.cfg.Paths.StagingDir, maxAge, d.logger)
			if len(result.Removed) > 0 || len(result.Errors) > 0 {
				d.logger.Info("staging cleanup",
					logging.Int("removed", len(result.Removed)),
					logging.Int("errors", len(result.Errors)),
				)
			}
		}
	}
}
