package handlers

import (
	"net/http"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/generation"
	"github.com/Msr7799/veo-backend/internal/http/respond"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/middleware"
	"github.com/Msr7799/veo-backend/internal/publish"
	"github.com/Msr7799/veo-backend/internal/storage"
)

// App holds the dependencies shared by HTTP handlers.
type App struct {
	Config       *infra.Config
	Logger       *infra.Logger
	Orchestrator *generation.Orchestrator
	Quota        domain.QuotaRepository
	// Files is set when artifacts are kept on local disk.
	Files *storage.FileStore
	// Publisher is nil when YouTube publishing is not configured.
	Publisher *publish.YouTube
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	respond.JSON(w, code, v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	respond.Error(w, code, errCode, message)
}

// fail maps err onto the error envelope and logs anything unexpected.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := respond.Classify(err, a.Config.Hardened())
	if status >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	a.error(w, status, code, message)
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
