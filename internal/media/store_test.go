package media

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"podium/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(Config{
		DataDir:       t.TempDir(),
		SigningSecret: "test-secret",
		MaxUploadMiB:  1,
	})
	if err != nil {
		t.Fatalf("NewStore returned error: %v", err)
	}
	return store
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	locator, size, err := store.Put(strings.NewReader("video-bytes"), "video/webm")
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if size != int64(len("video-bytes")) {
		t.Fatalf("size = %d", size)
	}
	if !strings.HasSuffix(locator, ".webm") {
		t.Fatalf("locator = %q, want .webm extension", locator)
	}

	reader, err := store.Open(locator)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "video-bytes" {
		t.Fatalf("data = %q", data)
	}
	if got := ContentTypeFor(locator); got != "video/webm" {
		t.Fatalf("ContentTypeFor = %q", got)
	}
}

func TestPutRejectsUnsupportedContentType(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.Put(strings.NewReader("bytes"), "application/x-msdownload")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPutEnforcesSizeCap(t *testing.T) {
	store := newTestStore(t)
	oversized := strings.NewReader(strings.Repeat("x", (1<<20)+1))
	_, _, err := store.Put(oversized, "video/mp4")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPutAcceptsContentTypeParameters(t *testing.T) {
	store := newTestStore(t)
	locator, _, err := store.Put(strings.NewReader("bytes"), "video/mp4; codecs=avc1")
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if !strings.HasSuffix(locator, ".mp4") {
		t.Fatalf("locator = %q", locator)
	}
}

func TestOpenRejectsTraversal(t *testing.T) {
	store := newTestStore(t)
	for _, locator := range []string{"../secrets.txt", "a/b.mp4", ".hidden"} {
		if _, err := store.Open(locator); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("locator %q: expected validation error, got %v", locator, err)
		}
	}
}

func TestSignedQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires, sig := store.SignedQuery("clip.mp4", now)

	if err := store.VerifySignedQuery("clip.mp4", expires, sig, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("verify within ttl: %v", err)
	}
	if err := store.VerifySignedQuery("clip.mp4", expires, sig, now.Add(2*time.Hour)); err == nil {
		t.Fatal("expected expiry error")
	}
	if err := store.VerifySignedQuery("other.mp4", expires, sig, now); err == nil {
		t.Fatal("expected signature mismatch for different locator")
	}
	if err := store.VerifySignedQuery("clip.mp4", expires+60, sig, now); err == nil {
		t.Fatal("expected signature mismatch for tampered expiry")
	}
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	store := newTestStore(t)
	if err := store.Remove("absent.mp4"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
}
