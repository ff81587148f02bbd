package blobstore

import "context"

// ObjectEvent describes a finalized object write. Events fire only after the
// write is durable, which is what guarantees stage ordering within a job.
type ObjectEvent struct {
	Path        string
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string
	ContentType string
	Metadata    map[string]string
	Size        int64
}

// PutOptions carries the content type and key/value metadata attached to an
// object write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Store is the object storage surface the pipeline depends on. Implementations
// must make writes durable before publishing the corresponding finalize event.
type Store interface {
	// Upload copies a local file into the store at objectPath.
	Upload(ctx context.Context, localPath, objectPath string, opts PutOptions) error
	// Save writes raw bytes into the store at objectPath.
	Save(ctx context.Context, objectPath string, data []byte, opts PutOptions) error
	// Download copies the object at objectPath to a local destination file.
	Download(ctx context.Context, objectPath, destPath string) error
	// Stat returns object metadata, or (nil, nil) when the object is absent.
	Stat(ctx context.Context, objectPath string) (*ObjectInfo, error)
	// PublicURL returns the externally reachable URL for an object path.
	PublicURL(objectPath string) string
}

// Notifier exposes the finalize-event stream produced by a Store.
type Notifier interface {
	// Events returns the channel of object finalize events. The channel is
	// closed when the store shuts down.
	Events() <-chan ObjectEvent
}
