package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Msr7799/veo-backend/internal/domain"
)

type bytesStore struct {
	data map[string][]byte
}

func (s *bytesStore) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	s.data[path] = data
	return path, nil
}

func (s *bytesStore) SignURL(ctx context.Context, locator string, ttl time.Duration) (string, error) {
	return "https://example/" + locator, nil
}

func (s *bytesStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	data, ok := s.data[locator]
	if !ok {
		return nil, errors.New("missing")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeGoogle struct {
	*httptest.Server
	uploadAuth  string
	uploadMeta  map[string]any
	uploadMedia []byte
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	f := &fakeGoogle{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","refresh_token":"rt-1","expires_in":3600}`))
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		f.uploadAuth = r.Header.Get("Authorization")
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/related", mediaType)
		mr := multipart.NewReader(r.Body, params["boundary"])
		meta, err := mr.NextPart()
		require.NoError(t, err)
		require.NoError(t, json.NewDecoder(meta).Decode(&f.uploadMeta))
		media, err := mr.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "video/mp4", media.Header.Get("Content-Type"))
		f.uploadMedia, _ = io.ReadAll(media)
		_, _ = w.Write([]byte(`{"id":"yt-123"}`))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestYouTube(f *fakeGoogle, store domain.ObjectStore) *YouTube {
	return NewYouTube(Options{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
		TokenTTL:     time.Hour,
		Store:        store,
		Endpoint:     oauth2.Endpoint{AuthURL: f.URL + "/auth", TokenURL: f.URL + "/token"},
		UploadURL:    f.URL + "/upload",
		HTTPClient:   f.Client(),
	})
}

func completedJob() *domain.Job {
	return &domain.Job{
		ID:     "job-1",
		Status: domain.JobStatusCompleted,
		Result: &domain.JobResult{VideoURI: "generated/videos/job-1/video.mp4", MIMEType: "video/mp4"},
	}
}

func TestNewYouTubeDisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewYouTube(Options{}))
}

func TestConnectAndPublish(t *testing.T) {
	f := newFakeGoogle(t)
	store := &bytesStore{data: map[string][]byte{"generated/videos/job-1/video.mp4": []byte("mp4-bytes")}}
	yt := newTestYouTube(f, store)

	authURL := yt.AuthURL("user-1")
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, UploadScope, u.Query().Get("scope"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))

	assert.False(t, yt.Connected("user-1"))
	owner, err := yt.Exchange(context.Background(), state, "the-code")
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)
	assert.True(t, yt.Connected("user-1"))

	// States are single use.
	_, err = yt.Exchange(context.Background(), state, "the-code")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	id, err := yt.Publish(context.Background(), "user-1", completedJob(), Metadata{Title: "Sunrise", Tags: []string{"veo"}})
	require.NoError(t, err)
	assert.Equal(t, "yt-123", id)
	assert.Equal(t, "Bearer at-1", f.uploadAuth)
	assert.Equal(t, []byte("mp4-bytes"), f.uploadMedia)
	assert.Equal(t, "Sunrise", f.uploadMeta["snippet"].(map[string]any)["title"])
	assert.Equal(t, "private", f.uploadMeta["status"].(map[string]any)["privacyStatus"])

	yt.Disconnect("user-1")
	assert.False(t, yt.Connected("user-1"))
}

func TestPublishPreconditions(t *testing.T) {
	f := newFakeGoogle(t)
	yt := newTestYouTube(f, &bytesStore{data: map[string][]byte{}})

	pending := &domain.Job{ID: "j", Status: domain.JobStatusProcessing}
	_, err := yt.Publish(context.Background(), "user-1", pending, Metadata{Title: "x"})
	assert.True(t, errors.Is(err, domain.ErrJobNotCompleted))

	_, err = yt.Publish(context.Background(), "user-1", completedJob(), Metadata{Title: "x"})
	assert.True(t, errors.Is(err, domain.ErrNotConnected))

	_, err = yt.Exchange(context.Background(), "bogus", "code")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	state := mustState(t, yt.AuthURL("user-1"))
	_, err = yt.Exchange(context.Background(), state, "the-code")
	require.NoError(t, err)

	_, err = yt.Publish(context.Background(), "user-1", completedJob(), Metadata{})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = yt.Publish(context.Background(), "user-1", completedJob(), Metadata{Title: "x", Privacy: "friends"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = yt.Publish(context.Background(), "user-1", completedJob(), Metadata{Title: "x"})
	assert.True(t, errors.Is(err, domain.ErrStorage))
}

func mustState(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u.Query().Get("state")
}
