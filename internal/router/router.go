package router

import (
	"path"
	"strings"
)

// Stage identifies a pipeline stage an object event routes to.
type Stage string

const (
	// StageGIFToVideo converts a rendered board GIF into a shareable MP4.
	StageGIFToVideo Stage = "gif-to-video"
	// StageTranscode normalizes an uploaded game video, optionally feeding
	// the recognizer afterwards.
	StageTranscode Stage = "transcode"
)

// Event is one object-store finalize notification.
type Event struct {
	Path        string
	ContentType string
	Metadata    map[string]string
}

// Decision names the stage an event routes to along with the identifiers the
// stage needs.
type Decision struct {
	Stage       Stage
	UUID        string
	UserID      string
	GeneratePGN bool
}

// Route inspects an object event and decides which stage, if any, should
// process it. A nil decision means the event is not pipeline input; repeated
// delivery of the same event always yields the same decision.
func Route(event Event) *Decision {
	objectPath := strings.TrimPrefix(strings.TrimSpace(event.Path), "/")
	if objectPath == "" {
		return nil
	}
	contentType := strings.ToLower(strings.TrimSpace(event.ContentType))

	switch {
	case strings.HasPrefix(objectPath, "gifs/"):
		if contentType != "image/gif" {
			return nil
		}
		uuid := metadataValue(event.Metadata, "uuid")
		userID := metadataValue(event.Metadata, "userId")
		if uuid == "" || userID == "" {
			return nil
		}
		return &Decision{Stage: StageGIFToVideo, UUID: uuid, UserID: userID}

	case strings.HasPrefix(objectPath, "tmp/"):
		if contentType != "video/mp4" {
			return nil
		}
		base := path.Base(objectPath)
		uuid := strings.TrimSuffix(base, path.Ext(base))
		if uuid == "" || uuid == "." {
			return nil
		}
		generatePGN := metadataValue(event.Metadata, "generatePgn") == "true"
		userID := metadataValue(event.Metadata, "userId")
		if generatePGN && userID == "" {
			return nil
		}
		return &Decision{Stage: StageTranscode, UUID: uuid, UserID: userID, GeneratePGN: generatePGN}
	}
	return nil
}

func metadataValue(metadata map[string]string, key string) string {
	if metadata == nil {
		return ""
	}
	return strings.TrimSpace(metadata[key])
}
