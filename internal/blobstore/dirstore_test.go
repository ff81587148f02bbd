package blobstore_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"chessreel/internal/blobstore"
	"chessreel/internal/testsupport"
)

func newStore(t *testing.T) *blobstore.DirStore {
	t.Helper()
	store, err := blobstore.NewDirStore(t.TempDir(), "http://cdn.local/objects")
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func nextEvent(t *testing.T, store *blobstore.DirStore) blobstore.ObjectEvent {
	t.Helper()
	select {
	case event, ok := <-store.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
	return blobstore.ObjectEvent{}
}

func TestSavePublishesFinalizeEvent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	opts := blobstore.PutOptions{
		ContentType: "image/gif",
		Metadata:    map[string]string{"uuid": "a", "userId": "u"},
	}
	if err := store.Save(ctx, "gifs/test.gif", []byte("GIF89a"), opts); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	event := nextEvent(t, store)
	if event.Path != "gifs/test.gif" {
		t.Fatalf("unexpected event path %q", event.Path)
	}
	if event.ContentType != "image/gif" {
		t.Fatalf("unexpected content type %q", event.ContentType)
	}
	if event.Metadata["uuid"] != "a" {
		t.Fatalf("metadata lost: %#v", event.Metadata)
	}

	// The object must be durable by the time the event is observed.
	info, err := store.Stat(ctx, event.Path)
	if err != nil || info == nil {
		t.Fatalf("object not durable: info=%v err=%v", info, err)
	}
	if info.Size != 6 {
		t.Fatalf("unexpected object size %d", info.Size)
	}
	if info.Metadata["userId"] != "u" {
		t.Fatalf("sidecar metadata lost: %#v", info.Metadata)
	}
}

func TestUploadRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "in.mp4")
	testsupport.WriteFile(t, source, 1024)

	if err := store.Upload(ctx, source, "tmp/job.mp4", blobstore.PutOptions{ContentType: "video/mp4"}); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	nextEvent(t, store)

	dest := filepath.Join(t.TempDir(), "out.mp4")
	if err := store.Download(ctx, "tmp/job.mp4", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Size() != 1024 {
		t.Fatalf("download mismatch: %v size=%d", err, info.Size())
	}
}

func TestStatAbsentObject(t *testing.T) {
	store := newStore(t)
	info, err := store.Stat(context.Background(), "videos/missing.mp4")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info != nil {
		t.Fatalf("expected nil info for absent object, got %#v", info)
	}
}

func TestRejectsEscapingPaths(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, path := range []string{"../outside.txt", "/etc/passwd", "a/../../b", ""} {
		if err := store.Save(ctx, path, []byte("x"), blobstore.PutOptions{}); err == nil {
			t.Errorf("Save(%q) should be rejected", path)
		}
	}
}

func TestPublicURL(t *testing.T) {
	store := newStore(t)
	if got := store.PublicURL("videos/a.mp4"); got != "http://cdn.local/objects/videos/a.mp4" {
		t.Fatalf("unexpected public URL %q", got)
	}
	if got := store.PublicURL("/videos/a.mp4"); got != "http://cdn.local/objects/videos/a.mp4" {
		t.Fatalf("leading slash not normalized: %q", got)
	}
}

func TestFullEventBufferNeverBlocks(t *testing.T) {
	store, err := blobstore.NewDirStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx := context.Background()
		// Well past the event buffer capacity, with no consumer draining.
		for i := 0; i < 300; i++ {
			path := fmt.Sprintf("gifs/burst-%d.gif", i)
			if err := store.Save(ctx, path, []byte("x"), blobstore.PutOptions{}); err != nil {
				t.Errorf("Save during burst: %v", err)
				return
			}
		}
		store.Close()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writes or Close blocked with a full event buffer")
	}
}

func TestCloseStopsEventDelivery(t *testing.T) {
	store, err := blobstore.NewDirStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewDirStore: %v", err)
	}
	store.Close()
	store.Close() // idempotent

	if err := store.Save(context.Background(), "gifs/late.gif", []byte("x"), blobstore.PutOptions{}); err != nil {
		t.Fatalf("Save after close should still store: %v", err)
	}
	if _, ok := <-store.Events(); ok {
		t.Fatal("closed store must not deliver events")
	}
}
