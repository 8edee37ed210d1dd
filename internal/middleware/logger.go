package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// logSlotKey carries the identity resolved further down the chain back up
// to the access log line.
const logSlotKey userKey = "log_user_id"

func recordUserID(ctx context.Context, userID string) {
	if slot, ok := ctx.Value(logSlotKey).(*string); ok {
		*slot = userID
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger writes one structured access log line per request. lookup may be nil.
func Logger(l zerolog.Logger, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			slot := new(string)
			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), logSlotKey, slot)))

			evt := l.Info()
			if rw.status >= http.StatusInternalServerError {
				evt = l.Error()
			}
			evt = evt.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Str("request_id", chimw.GetReqID(r.Context()))
			if *slot != "" {
				evt = evt.Str("user_id", *slot)
			}
			if lookup != nil {
				if country, err := lookup(clientIPForRateLimit(r)); err == nil && country != "" {
					evt = evt.Str("country", country)
				}
			}
			evt.Msg("http request")
		})
	}
}
