package testsupport

import (
	"context"
	"testing"

	"chessreel/internal/blobstore"
	"chessreel/internal/config"
	"chessreel/internal/ledger"
)

// MustOpenLedger opens a ledger.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenBlobstore opens a DirStore over the test bucket directory and
// registers cleanup.
func MustOpenBlobstore(t testing.TB, cfg *config.Config) *blobstore.DirStore {
	t.Helper()

	store, err := blobstore.NewDirStore(cfg.Paths.BucketDir, cfg.Blobstore.PublicBaseURL)
	if err != nil {
		t.Fatalf("blobstore.NewDirStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// NewJob creates one ledger record for tests.
func NewJob(t testing.TB, store *ledger.Store, kind ledger.Kind, uuid, userID string) *ledger.Record {
	t.Helper()

	record, err := store.Create(context.Background(), kind, uuid, userID)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
