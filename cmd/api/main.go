package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Msr7799/veo-backend/internal/adapter/repo"
	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/generation"
	"github.com/Msr7799/veo-backend/internal/http/handlers"
	httpapi "github.com/Msr7799/veo-backend/internal/http/httpapi"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/infra/geoip"
	"github.com/Msr7799/veo-backend/internal/infra/google"
	"github.com/Msr7799/veo-backend/internal/middleware"
	"github.com/Msr7799/veo-backend/internal/providers/vertex"
	"github.com/Msr7799/veo-backend/internal/providers/video"
	"github.com/Msr7799/veo-backend/internal/publish"
	"github.com/Msr7799/veo-backend/internal/storage"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobs := repo.NewJobRepository()
	quota := repo.NewQuotaRepository(cfg.QuotaDailyLimit, cfg.QuotaLocation)

	var (
		store domain.ObjectStore
		files *storage.FileStore
	)
	switch cfg.StorageBackend {
	case "gcs":
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init gcs storage")
		}
		defer gcs.Close()
		store = gcs
	default:
		files, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL, cfg.StorageSigningKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init local storage")
		}
		store = files
	}

	var generator video.Generator
	switch cfg.Provider {
	case "vertex":
		client, err := vertex.NewClient(ctx, vertex.Options{
			ProjectID:    cfg.VertexProject,
			Location:     cfg.VertexLocation,
			BaseURL:      cfg.VertexBaseURL,
			PollInterval: cfg.ProviderPollInterval,
			Logger:       &logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init vertex client")
		}
		generator = video.NewVEO(client, cfg.VeoModel, cfg.VeoFastModel, cfg.VertexOutputGCS)
	default:
		logger.Warn().Msg("PROVIDER=synthetic, jobs return placeholder artifacts")
		generator = video.NewSynthetic(2 * time.Second)
	}

	var modes []domain.Mode
	if cfg.ModeTextEnabled {
		modes = append(modes, domain.ModeText)
	}
	if cfg.ModeImageEnabled {
		modes = append(modes, domain.ModeImage)
	}
	if cfg.ModeVideoEnabled {
		modes = append(modes, domain.ModeVideo)
	}

	orchestrator := generation.New(generation.Options{
		Jobs:            jobs,
		Quota:           quota,
		Generator:       generator,
		Store:           store,
		Policy:          generation.PolicyFromConfig(cfg),
		EnabledModes:    modes,
		SignedURLTTL:    cfg.SignedURLTTL,
		ProviderTimeout: cfg.ProviderTimeout,
		MaxConcurrent:   cfg.MaxConcurrentJobs,
		Hardened:        cfg.Hardened(),
		Logger:          &logger,
		BaseContext:     ctx,
	})

	general := middleware.NewLimiter("general", cfg.GeneralRateMax, cfg.GeneralRateWindow)
	generationLimiter := middleware.NewLimiter("generation", cfg.GenerationRateMax, cfg.GenerationRateWindow)

	var verifier domain.IdentityVerifier
	switch cfg.AuthMode {
	case "google":
		verifier = google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID)
	default:
		verifier = middleware.NewHMACVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}

	var country middleware.CountryLookup
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip disabled")
		} else {
			defer resolver.Close()
			country = resolver.CountryCode
		}
	}

	publisher := publish.NewYouTube(publish.Options{
		ClientID:     cfg.YouTubeClientID,
		ClientSecret: cfg.YouTubeClientSecret,
		RedirectURL:  cfg.YouTubeRedirectURL,
		TokenTTL:     cfg.YouTubeTokenTTL,
		Store:        store,
		Logger:       &logger,
	})
	if publisher != nil {
		publisher.Start()
		defer publisher.Stop()
	}

	if cfg.JanitorEnabled {
		generation.NewJanitor(jobs, quota, cfg.JobRetention, cfg.JanitorInterval, &logger, general, generationLimiter).Start(ctx)
	}

	app := &handlers.App{
		Config:       cfg,
		Logger:       &logger,
		Orchestrator: orchestrator,
		Quota:        quota,
		Files:        files,
		Publisher:    publisher,
	}
	router := httpapi.NewRouter(httpapi.Deps{
		App:        app,
		Verifier:   verifier,
		General:    general,
		Generation: generationLimiter,
		Logger:     logger,
		Country:    country,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("provider", cfg.Provider).Str("storage", cfg.StorageBackend).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Jobs still queued or talking to the provider are failed.
	cancel()
	if err := orchestrator.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("background jobs did not drain")
	}
	logger.Info().Msg("server stopped")
}
