package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chessreel/internal/fileutil"
	"chessreel/internal/logging"
)

const metaSuffix = ".meta.json"

// DirStore is a directory-backed Store. Objects live under a root directory
// with a JSON sidecar per object holding content type and metadata. Writes go
// through a temp file and rename, so an object is never observable half
// written, and the finalize event is published only after the rename.
type DirStore struct {
	root          string
	publicBaseURL string
	logger        *slog.Logger

	mu     sync.Mutex
	events chan ObjectEvent
	closed bool
}

// Option adjusts DirStore construction.
type Option func(*DirStore)

// WithLogger attaches a logger for event-delivery diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DirStore) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDirStore constructs a DirStore rooted at dir.
func NewDirStore(dir, publicBaseURL string, opts ...Option) (*DirStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("bucket directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket directory: %w", err)
	}
	store := &DirStore{
		root:          dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logging.NewNop(),
		events:        make(chan ObjectEvent, 128),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Events returns the finalize-event channel.
func (d *DirStore) Events() <-chan ObjectEvent {
	return d.events
}

// Close stops event delivery. Pending writes after Close are stored but not
// announced.
func (d *DirStore) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.events)
	}
}

func (d *DirStore) objectFile(objectPath string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(objectPath))
	if cleaned == "" || cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

// Upload copies a local file into the store and publishes a finalize event.
func (d *DirStore) Upload(ctx context.Context, localPath, objectPath string, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := d.objectFile(objectPath)
	if err != nil {
		return err
	}
	if err := fileutil.CopyFileAtomic(localPath, target, 0o644); err != nil {
		return fmt.Errorf("store object %s: %w", objectPath, err)
	}
	if err := d.writeSidecar(target, opts); err != nil {
		return err
	}
	d.publish(objectPath, opts)
	return nil
}

// Save writes raw bytes into the store and publishes a finalize event.
func (d *DirStore) Save(ctx context.Context, objectPath string, data []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := d.objectFile(objectPath)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return fmt.Errorf("store object %s: %w", objectPath, err)
	}
	if err := d.writeSidecar(target, opts); err != nil {
		return err
	}
	d.publish(objectPath, opts)
	return nil
}

// Download copies the object to destPath.
func (d *DirStore) Download(ctx context.Context, objectPath, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source, err := d.objectFile(objectPath)
	if err != nil {
		return err
	}
	if err := fileutil.CopyFile(source, destPath); err != nil {
		return fmt.Errorf("download object %s: %w", objectPath, err)
	}
	return nil
}

// Stat returns object metadata, or (nil, nil) when absent.
func (d *DirStore) Stat(ctx context.Context, objectPath string) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := d.objectFile(objectPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat object %s: %w", objectPath, err)
	}

	result := &ObjectInfo{Path: objectPath, Size: info.Size()}
	sidecar, err := os.ReadFile(target + metaSuffix)
	if err == nil {
		var stored sidecarPayload
		if err := json.Unmarshal(sidecar, &stored); err == nil {
			result.ContentType = stored.ContentType
			result.Metadata = stored.Metadata
		}
	}
	return result, nil
}

// PublicURL returns the externally reachable URL for an object.
func (d *DirStore) PublicURL(objectPath string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if d.publicBaseURL == "" {
		return "/" + trimmed
	}
	return d.publicBaseURL + "/" + trimmed
}

type sidecarPayload struct {
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (d *DirStore) writeSidecar(target string, opts PutOptions) error {
	payload, err := json.Marshal(sidecarPayload{ContentType: opts.ContentType, Metadata: opts.Metadata})
	if err != nil {
		return fmt.Errorf("marshal object metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(target+metaSuffix, payload, 0o644); err != nil {
		return fmt.Errorf("store object metadata: %w", err)
	}
	return nil
}

func (d *DirStore) publish(objectPath string, opts PutOptions) {
	metadata := make(map[string]string, len(opts.Metadata))
	for key, value := range opts.Metadata {
		metadata[key] = value
	}
	event := ObjectEvent{
		Path:        filepath.ToSlash(filepath.Clean(strings.TrimSpace(objectPath))),
		ContentType: opts.ContentType,
		Metadata:    metadata,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	// A blocking send here would hold the lock across Close, so a full
	// buffer drops the event instead.
	select {
	case d.events <- event:
	default:
		d.logger.Warn("finalize event buffer full, event dropped",
			logging.String("object_path", event.Path))
	}
}

var (
	_ Store    = (*DirStore)(nil)
	_ Notifier = (*DirStore)(nil)
)
