package media

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"podium/internal/services"
)

const (
	defaultMaxUploadMiB = 100
	defaultAccessTTL    = time.Hour
)

// allowedContentTypes maps accepted upload content types to file extensions.
var allowedContentTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

// Store persists uploaded recordings on the local filesystem and issues
// HMAC-signed, time-limited access tokens so media URLs can be handed to
// external services without exposing the API token.
type Store struct {
	root     string
	secret   []byte
	ttl      time.Duration
	maxBytes int64
}

// Config captures the store's runtime settings.
type Config struct {
	DataDir          string
	SigningSecret    string
	MaxUploadMiB     int
	AccessTTLSeconds int
}

// NewStore creates the media directory under the data dir and returns the
// store.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "media", "init", "data dir required", nil)
	}
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "media", "init", "signing secret required", nil)
	}
	root := filepath.Join(cfg.DataDir, "media")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("media init: create %s: %w", root, err)
	}
	maxMiB := cfg.MaxUploadMiB
	if maxMiB <= 0 {
		maxMiB = defaultMaxUploadMiB
	}
	ttl := defaultAccessTTL
	if cfg.AccessTTLSeconds > 0 {
		ttl = time.Duration(cfg.AccessTTLSeconds) * time.Second
	}
	return &Store{
		root:     root,
		secret:   []byte(cfg.SigningSecret),
		ttl:      ttl,
		maxBytes: int64(maxMiB) << 20,
	}, nil
}

// MaxBytes returns the upload size cap in bytes.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// Put streams an upload to disk and returns its locator and size. Uploads
// with an unsupported content type or exceeding the size cap are rejected.
func (s *Store) Put(r io.Reader, contentType string) (string, int64, error) {
	ext, ok := allowedContentTypes[normalizeContentType(contentType)]
	if !ok {
		return "", 0, services.Wrap(services.ErrValidation, "media", "put",
			fmt.Sprintf("unsupported content type %q", contentType), nil)
	}

	locator := uuid.NewString() + ext
	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("media put: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	// Read one byte past the cap so an oversized upload is detectable.
	size, err := io.Copy(tmp, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("media put: write upload: %w", err)
	}
	if size > s.maxBytes {
		cleanup()
		return "", 0, services.Wrap(services.ErrValidation, "media", "put",
			fmt.Sprintf("upload exceeds %d MiB limit", s.maxBytes>>20), nil)
	}
	if size == 0 {
		cleanup()
		return "", 0, services.Wrap(services.ErrValidation, "media", "put", "upload is empty", nil)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("media put: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, locator)); err != nil {
		os.Remove(tmpName)
		return "", 0, fmt.Errorf("media put: finalize upload: %w", err)
	}
	return locator, size, nil
}

// Open returns a reader for the stored media.
func (s *Store) Open(locator string) (io.ReadCloser, error) {
	path, err := s.resolve(locator)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, services.Wrap(services.ErrNotFound, "media", "open", locator, nil)
		}
		return nil, fmt.Errorf("media open: %w", err)
	}
	return file, nil
}

// Remove deletes the stored media. A missing file is not an error.
func (s *Store) Remove(locator string) error {
	path, err := s.resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("media remove: %w", err)
	}
	return nil
}

// ContentTypeFor returns the content type matching the locator's extension.
func ContentTypeFor(locator string) string {
	ext := strings.ToLower(filepath.Ext(locator))
	for contentType, allowedExt := range allowedContentTypes {
		if ext == allowedExt {
			return contentType
		}
	}
	return "application/octet-stream"
}

// SignedQuery returns the query-string parameters granting time-limited
// access to the locator: expires (unix seconds) and sig (hex HMAC).
func (s *Store) SignedQuery(locator string, now time.Time) (expires int64, sig string) {
	expires = now.Add(s.ttl).Unix()
	return expires, s.sign(locator, expires)
}

// VerifySignedQuery checks the signature and expiry produced by SignedQuery.
func (s *Store) VerifySignedQuery(locator string, expires int64, sig string, now time.Time) error {
	if now.Unix() > expires {
		return services.Wrap(services.ErrValidation, "media", "verify", "access token expired", nil)
	}
	want := s.sign(locator, expires)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return services.Wrap(services.ErrValidation, "media", "verify", "access token signature mismatch", nil)
	}
	return nil
}

func (s *Store) sign(locator string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(locator))
	mac.Write([]byte{0})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) resolve(locator string) (string, error) {
	if locator == "" || locator != filepath.Base(locator) || strings.HasPrefix(locator, ".") {
		return "", services.Wrap(services.ErrValidation, "media", "resolve",
			fmt.Sprintf("invalid locator %q", locator), nil)
	}
	return filepath.Join(s.root, locator), nil
}

func normalizeContentType(contentType string) string {
	base := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.IndexByte(base, ';'); idx >= 0 {
		base = strings.TrimSpace(base[:idx])
	}
	return base
}
