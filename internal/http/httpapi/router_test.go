package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Msr7799/veo-backend/internal/adapter/repo"
	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/generation"
	"github.com/Msr7799/veo-backend/internal/http/handlers"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/middleware"
	"github.com/Msr7799/veo-backend/internal/providers/video"
	"github.com/Msr7799/veo-backend/internal/storage"
)

const testSecret = "router-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	orch    *generation.Orchestrator
}

func newTestServer(t *testing.T, generationMax int) *testServer {
	t.Helper()
	cfg := &infra.Config{
		AppEnv:              "test",
		AdminToken:          "admin-secret",
		QuotaDailyLimit:     2,
		AllowedDurations:    []int{4, 6, 8},
		AllowedAspectRatios: []string{"16:9", "9:16"},
		AllowedFPS:          []int{24},
		DefaultDuration:     8,
		MaxPromptLength:     200,
	}
	logger := zerolog.Nop()

	files, err := storage.NewFileStore(t.TempDir(), "http://example.test/assets", "signing-key")
	require.NoError(t, err)
	quota := repo.NewQuotaRepository(cfg.QuotaDailyLimit, time.UTC)
	orch := generation.New(generation.Options{
		Jobs:          repo.NewJobRepository(),
		Quota:         quota,
		Generator:     video.NewSynthetic(0),
		Store:         files,
		Policy:        generation.PolicyFromConfig(cfg),
		EnabledModes:  []domain.Mode{domain.ModeText, domain.ModeImage},
		SignedURLTTL:  time.Hour,
		MaxConcurrent: 2,
		Logger:        &logger,
	})
	app := &handlers.App{
		Config:       cfg,
		Logger:       &logger,
		Orchestrator: orch,
		Quota:        quota,
		Files:        files,
	}
	h := NewRouter(Deps{
		App:        app,
		Verifier:   middleware.NewHMACVerifier(testSecret, "veo-backend"),
		General:    middleware.NewLimiter("general", 100, time.Minute),
		Generation: middleware.NewLimiter("generation", generationMax, time.Minute),
		Logger:     logger,
	})
	return &testServer{handler: h, orch: orch}
}

func token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := middleware.SignJWT(testSecret, "veo-backend", sub, sub+"@example.com", time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, target, sub, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if sub != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, sub))
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.orch.Wait(ctx))
}

func TestHealthAndModes(t *testing.T) {
	s := newTestServer(t, 10)

	rec, env := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = s.do(t, http.MethodGet, "/video/modes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var caps struct {
		Modes      []string `json:"modes"`
		DailyLimit int      `json:"dailyLimit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &caps))
	assert.Equal(t, []string{"text", "image"}, caps.Modes)
	assert.Equal(t, 2, caps.DailyLimit)
}

func TestCreateRequiresIdentity(t *testing.T) {
	s := newTestServer(t, 10)
	rec, env := s.do(t, http.MethodPost, "/video/text", "", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "unauthorized", env.Error.Code)
}

func TestTextJobLifecycle(t *testing.T) {
	s := newTestServer(t, 10)

	rec, env := s.do(t, http.MethodPost, "/video/text", "alice", `{"prompt":"A","cameraStyle":"pan"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created struct {
		JobID  string       `json:"jobId"`
		Status string       `json:"status"`
		Quota  domain.Usage `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, domain.Usage{Used: 1, Limit: 2, Remaining: 1}, created.Quota)

	s.drain(t)

	rec, env = s.do(t, http.MethodGet, "/video/status/"+created.JobID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Status    string     `json:"status"`
		VideoURI  string     `json:"videoUri"`
		SignedURL string     `json:"signedUrl"`
		ExpiresAt *time.Time `json:"expiresAt"`
		Error     string     `json:"error"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, "COMPLETED", status.Status)
	assert.Equal(t, "local://generated/videos/"+created.JobID+"/video.mp4", status.VideoURI)
	assert.NotNil(t, status.ExpiresAt)
	assert.Empty(t, status.Error)

	signed, err := url.Parse(status.SignedURL)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, signed.RequestURI(), nil)
	dl := httptest.NewRecorder()
	s.handler.ServeHTTP(dl, req)
	assert.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Body.String(), "Prompt: A. Camera style: Pan.")

	tampered := httptest.NewRequest(http.MethodGet, signed.Path+"?expires="+signed.Query().Get("expires")+"&sig=00", nil)
	dl = httptest.NewRecorder()
	s.handler.ServeHTTP(dl, tampered)
	assert.Equal(t, http.StatusNotFound, dl.Code)

	// Foreign identities see the same response as an unknown job.
	rec, env = s.do(t, http.MethodGet, "/video/status/"+created.JobID, "mallory", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)
	_, unknown := s.do(t, http.MethodGet, "/video/status/does-not-exist", "mallory", "")
	assert.Equal(t, env.Error, unknown.Error)
}

func TestQuotaExhaustionAndReset(t *testing.T) {
	s := newTestServer(t, 10)
	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/video/text", "bob", `{"prompt":"A"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	rec, env := s.do(t, http.MethodPost, "/video/text", "bob", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "quota_exceeded", env.Error.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	rec, env = s.do(t, http.MethodGet, "/video/quota", "bob", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var usage domain.Usage
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.Equal(t, domain.Usage{Used: 2, Limit: 2, Remaining: 0}, usage)

	req := httptest.NewRequest(http.MethodDelete, "/admin/quota/bob", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	denied := httptest.NewRecorder()
	s.handler.ServeHTTP(denied, req)
	assert.Equal(t, http.StatusUnauthorized, denied.Code)

	req = httptest.NewRequest(http.MethodDelete, "/admin/quota/bob", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	reset := httptest.NewRecorder()
	s.handler.ServeHTTP(reset, req)
	assert.Equal(t, http.StatusOK, reset.Code)

	rec, _ = s.do(t, http.MethodPost, "/video/text", "bob", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	s.drain(t)
}

func TestGenerationRateLimit(t *testing.T) {
	s := newTestServer(t, 1)
	rec, _ := s.do(t, http.MethodPost, "/video/text", "carol", `{"prompt":"A"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, env := s.do(t, http.MethodPost, "/video/text", "carol", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Polling is governed by the general limiter only.
	rec, _ = s.do(t, http.MethodGet, "/video/quota", "carol", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	s.drain(t)
}

func TestGenerationRateLimitIndependentOfQuota(t *testing.T) {
	// Generation limit and daily quota are both 2.
	s := newTestServer(t, 2)
	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/video/text", "frank", `{"prompt":"A"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec, env := s.do(t, http.MethodPost, "/video/text", "frank", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "rate_limited", env.Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A fresh identity under the limit still sees its own quota state.
	rec, _ = s.do(t, http.MethodPost, "/video/text", "grace", `{"prompt":"A"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	s.drain(t)
}

func TestAdmissionRejections(t *testing.T) {
	s := newTestServer(t, 10)
	cases := []struct {
		name string
		path string
		body string
		code int
		err  string
	}{
		{"disabled mode", "/video/video", `{"prompt":"A","video":{"gcsUri":"gs://b/v.mp4"}}`, http.StatusBadRequest, "unsupported_mode"},
		{"malformed json", "/video/text", `{"prompt":`, http.StatusBadRequest, "bad_request"},
		{"empty prompt", "/video/text", `{"prompt":" "}`, http.StatusBadRequest, "bad_request"},
		{"bad enum", "/video/text", `{"prompt":"A","lighting":"dark"}`, http.StatusBadRequest, "bad_request"},
		{"image missing", "/video/image", `{"prompt":"A"}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, tc.path, "dave", tc.body)
			assert.Equal(t, tc.code, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.err, env.Error.Code)
		})
	}

	// None of the rejected requests consumed quota.
	rec, env := s.do(t, http.MethodGet, "/video/quota", "dave", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var usage domain.Usage
	require.NoError(t, json.Unmarshal(env.Data, &usage))
	assert.Equal(t, 0, usage.Used)
}

func TestPublishingDisabled(t *testing.T) {
	s := newTestServer(t, 10)
	rec, env := s.do(t, http.MethodPost, "/video/publish/any", "erin", `{"title":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "publishing_disabled", env.Error.Code)
}

func TestOpenAPIDocument(t *testing.T) {
	s := newTestServer(t, 10)
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/video/status/{jobId}")
}
