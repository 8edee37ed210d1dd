package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"

	"github.com/Msr7799/veo-backend/internal/domain"
)

// GCSScheme prefixes Cloud Storage locators.
const GCSScheme = "gs://"

// GCSStore keeps artifacts in a Cloud Storage bucket and signs V4 URLs with
// the ambient service account credentials.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore connects using Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	bucket = strings.TrimSpace(strings.TrimPrefix(bucket, GCSScheme))
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage: create gcs client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Upload writes data to path in the configured bucket.
func (s *GCSStore) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	key, err := sanitizeKey(path)
	if err != nil {
		return "", err
	}
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "storage: write gcs object")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "storage: finalize gcs object")
	}
	return GCSScheme + s.bucket + "/" + key, nil
}

// SignURL mints a V4 GET URL for any gs:// locator, including objects the
// provider wrote to another bucket.
func (s *GCSStore) SignURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	bucket, object, err := ParseGCSURI(locator)
	if err != nil {
		return "", err
	}
	signed, err := s.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", errors.Wrap(err, "storage: sign gcs url")
	}
	return signed, nil
}

// Open streams the object behind locator.
func (s *GCSStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, object, err := ParseGCSURI(locator)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open gcs object")
	}
	return r, nil
}

// ParseGCSURI splits gs://bucket/object.
func ParseGCSURI(uri string) (string, string, error) {
	if !strings.HasPrefix(uri, GCSScheme) {
		return "", "", errors.Newf("storage: %q is not a gs:// uri", uri)
	}
	bucket, object, ok := strings.Cut(strings.TrimPrefix(uri, GCSScheme), "/")
	if !ok || bucket == "" || object == "" {
		return "", "", errors.Newf("storage: %q has no object path", uri)
	}
	return bucket, object, nil
}

var _ domain.ObjectStore = (*GCSStore)(nil)
