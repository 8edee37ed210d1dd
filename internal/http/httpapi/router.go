package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/http/handlers"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/middleware"
)

// Deps are the collaborators the router wires around the handlers.
type Deps struct {
	App        *handlers.App
	Verifier   domain.IdentityVerifier
	General    *middleware.Limiter
	Generation *middleware.Limiter
	Logger     infra.Logger
	Country    middleware.CountryLookup
}

func NewRouter(d Deps) http.Handler {
	app := d.App
	r := chi.NewRouter()

	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(d.Logger, d.Country),
		middleware.CORS(app.Config.AllowedOrigins),
	)

	r.Get("/health", app.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Get("/assets/*", app.DownloadAsset)
	r.Get("/integrations/youtube/callback", app.YouTubeCallback)
	if app.Config.AdminToken != "" {
		r.Delete("/admin/quota/{ownerId}", app.QuotaReset)
	}

	r.With(middleware.RateLimit(d.General)).Get("/video/modes", app.VideoModes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(d.Verifier, d.Logger), middleware.RateLimit(d.General))

		r.Get("/video/quota", app.VideoQuota)
		r.Get("/video/status/{jobId}", app.VideoStatus)
		r.Post("/video/publish/{jobId}", app.VideoPublish)
		r.Get("/integrations/youtube/connect", app.YouTubeConnect)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(d.Generation))
			r.Post("/video/text", app.VideoText)
			r.Post("/video/image", app.VideoImage)
			r.Post("/video/video", app.VideoVideo)
		})
	})

	return r
}
