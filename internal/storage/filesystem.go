package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Msr7799/veo-backend/internal/domain"
)

// LocalScheme prefixes locators of artifacts kept by FileStore.
const LocalScheme = "local://"

// FileStore persists assets onto the local filesystem and mints HMAC-signed
// download URLs served by the assets handler. It is intended for development
// and single-node deployments without an object storage service.
type FileStore struct {
	basePath string
	baseURL  string
	key      []byte
	now      func() time.Time
}

// NewFileStore initializes a FileStore rooted at basePath whose signed URLs
// point below baseURL.
func NewFileStore(basePath, baseURL, signingKey string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if signingKey == "" {
		return nil, errors.New("storage: signing key is required")
	}
	if abs, err := filepath.Abs(basePath); err == nil {
		basePath = abs
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "storage: ensure base path")
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		key:      []byte(signingKey),
		now:      time.Now,
	}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Upload writes data under path and returns its local:// locator.
func (s *FileStore) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(path)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", errors.Wrap(err, "storage: ensure directory")
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", errors.Wrap(err, "storage: write file")
	}
	return LocalScheme + cleanKey, nil
}

// SignURL returns a download URL for locator that stops verifying after ttl.
func (s *FileStore) SignURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return "", err
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", s.signature(key, expires))
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignURL and returns the file path.
func (s *FileStore) Verify(key, expires, sig string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", errors.Mark(err, domain.ErrNotFound)
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", errors.Wrap(domain.ErrNotFound, "storage: malformed expiry")
	}
	if !hmac.Equal([]byte(sig), []byte(s.signature(cleanKey, expires))) {
		return "", errors.Wrap(domain.ErrNotFound, "storage: bad signature")
	}
	if s.now().Unix() > exp {
		return "", errors.Wrap(domain.ErrNotFound, "storage: link expired")
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleanKey)), nil
}

// Open streams the artifact behind locator.
func (s *FileStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := s.keyFromLocator(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, errors.Wrap(err, "storage: open file")
	}
	return f, nil
}

func (s *FileStore) keyFromLocator(locator string) (string, error) {
	if !strings.HasPrefix(locator, LocalScheme) {
		return "", errors.Newf("storage: locator %q is not a local artifact", locator)
	}
	return sanitizeKey(strings.TrimPrefix(locator, LocalScheme))
}

func (s *FileStore) signature(key, expires string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(key))
	mac.Write([]byte{'|'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

var _ domain.ObjectStore = (*FileStore)(nil)
