package testsupport

import (
	"context"
	"strings"
	"testing"

	"podium/internal/config"
	"podium/internal/media"
	"podium/internal/store"
)

// MustOpenMedia builds a media store rooted in the test config's data dir.
func MustOpenMedia(t testing.TB, cfg *config.Config) *media.Store {
	t.Helper()

	ms, err := media.NewStore(media.Config{
		DataDir:          cfg.Paths.DataDir,
		SigningSecret:    cfg.Media.SigningSecret,
		MaxUploadMiB:     cfg.Media.MaxUploadMiB,
		AccessTTLSeconds: cfg.Media.AccessTTLSeconds,
	})
	if err != nil {
		t.Fatalf("media.NewStore: %v", err)
	}
	return ms
}

// UploadRecording stores real media bytes, attaches the resulting locator and
// moves the recording into the processing state.
func UploadRecording(t testing.TB, st *store.Store, ms *media.Store, id string) string {
	t.Helper()

	ctx := context.Background()
	locator, size, err := ms.Put(strings.NewReader("test-media-bytes"), "video/mp4")
	if err != nil {
		t.Fatalf("media.Put: %v", err)
	}
	if err := st.AttachMedia(ctx, id, locator, "video/mp4", size); err != nil {
		t.Fatalf("store.AttachMedia: %v", err)
	}
	ok, err := st.Transition(ctx, id, store.StatusUploading, store.StatusProcessing)
	if err != nil {
		t.Fatalf("store.Transition: %v", err)
	}
	if !ok {
		t.Fatalf("recording %s was not in uploading state", id)
	}
	return locator
}
