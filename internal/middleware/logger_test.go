package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRecordsIdentityResolvedDownstream(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	verifier := NewHMACVerifier("secret", "")
	token, err := SignJWT("secret", "", "user-7", "", time.Hour)
	require.NoError(t, err)

	inner := AuthJWT(verifier, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	lookup := func(ip string) (string, error) { return "BH", nil }
	handler := Logger(logger, lookup)(inner)

	req := httptest.NewRequest(http.MethodGet, "/video/quota", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user-7", line["user_id"])
	assert.Equal(t, "BH", line["country"])
	assert.Equal(t, float64(http.StatusTeapot), line["status"])
	assert.Equal(t, "/video/quota", line["path"])
}

func TestLoggerOmitsIdentityForAnonymousRequests(t *testing.T) {
	var buf bytes.Buffer
	handler := Logger(zerolog.New(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "user_id")
	assert.Equal(t, float64(http.StatusOK), line["status"])
}
