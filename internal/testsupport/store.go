package testsupport

import (
	"context"
	"testing"

	"podium/internal/config"
	"podium/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewRecording creates a recording for tests using the provided store.
func NewRecording(t testing.TB, st *store.Store, params store.NewRecordingParams) *store.Recording {
	t.Helper()

	rec, err := st.NewRecording(context.Background(), params)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	return rec
}

// CompleteUpload attaches placeholder media and moves the recording into the
// processing state, mirroring a finished client upload.
func CompleteUpload(t testing.TB, st *store.Store, id string) {
	t.Helper()

	ctx := context.Background()
	if err := st.AttachMedia(ctx, id, id+".mp4", "video/mp4", 1024); err != nil {
		t.Fatalf("store.AttachMedia: %v", err)
	}
	ok, err := st.Transition(ctx, id, store.StatusUploading, store.StatusProcessing)
	if err != nil {
		t.Fatalf("store.Transition: %v", err)
	}
	if !ok {
		t.Fatalf("recording %s was not in uploading state", id)
	}
}
