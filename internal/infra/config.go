package infra

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	AllowedOrigins   []string
	GeoIPDBPath      string
	AdminToken       string

	AuthMode       string
	JWTSecret      string
	JWTIssuer      string
	GoogleClientID string
	GoogleIssuer   string

	QuotaDailyLimit int
	QuotaLocation   *time.Location

	GeneralRateMax        int
	GeneralRateWindow     time.Duration
	GenerationRateMax     int
	GenerationRateWindow  time.Duration
	MaxConcurrentJobs     int
	JobRetention          time.Duration
	JanitorEnabled        bool
	JanitorInterval       time.Duration
	SignedURLTTL          time.Duration
	ProviderTimeout       time.Duration
	ProviderPollInterval  time.Duration
	AllowedDurations      []int
	AllowedAspectRatios   []string
	AllowedFPS            []int
	DefaultDuration       int
	MaxPromptLength       int
	ModeTextEnabled       bool
	ModeImageEnabled      bool
	ModeVideoEnabled      bool
	ForwardSampleCount    bool
	ForwardSeed           bool
	ForwardNegativePrompt bool
	ForwardGenerateAudio  bool
	ForwardResolution     bool

	Provider        string
	VertexProject   string
	VertexLocation  string
	VertexBaseURL   string
	VeoModel        string
	VeoFastModel    string
	VertexOutputGCS string

	StorageBackend    string
	StoragePath       string
	StorageBaseURL    string
	StorageSigningKey string
	GCSBucket         string

	YouTubeClientID     string
	YouTubeClientSecret string
	YouTubeRedirectURL  string
	YouTubeTokenTTL     time.Duration
}

// Hardened reports whether internal error detail must be hidden from callers.
func (c *Config) Hardened() bool {
	return c.AppEnv == "production"
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	jwt := LoadJWTSettings()
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             port,
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		AllowedOrigins:   getEnvList("ALLOWED_ORIGINS", nil),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),

		AuthMode:       strings.ToLower(getEnv("AUTH_MODE", "hs256")),
		JWTSecret:      jwt.Secret,
		JWTIssuer:      jwt.Issuer,
		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleIssuer:   getEnv("GOOGLE_ISSUER", "https://accounts.google.com"),

		QuotaDailyLimit: getEnvInt("QUOTA_DAILY_LIMIT", 5),

		GeneralRateMax:        getEnvInt("RATE_LIMIT_GENERAL_MAX", 100),
		GeneralRateWindow:     time.Second * time.Duration(getEnvInt("RATE_LIMIT_GENERAL_WINDOW_SECONDS", 60)),
		GenerationRateMax:     getEnvInt("RATE_LIMIT_GENERATION_MAX", 10),
		GenerationRateWindow:  time.Second * time.Duration(getEnvInt("RATE_LIMIT_GENERATION_WINDOW_SECONDS", 60)),
		MaxConcurrentJobs:     getEnvInt("MAX_CONCURRENT_JOBS", 4),
		JobRetention:          time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 24)),
		JanitorEnabled:        getEnvBool("JANITOR_ENABLED", false),
		JanitorInterval:       time.Minute * time.Duration(getEnvInt("JANITOR_INTERVAL_MINUTES", 60)),
		SignedURLTTL:          time.Minute * time.Duration(getEnvInt("SIGNED_URL_TTL_MINUTES", 60)),
		ProviderTimeout:       time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 600)),
		ProviderPollInterval:  time.Second * time.Duration(getEnvInt("PROVIDER_POLL_INTERVAL_SECONDS", 10)),
		AllowedDurations:      getEnvInts("VIDEO_ALLOWED_DURATIONS", []int{4, 6, 8}),
		AllowedAspectRatios:   getEnvList("VIDEO_ALLOWED_ASPECT_RATIOS", []string{"16:9", "9:16"}),
		AllowedFPS:            getEnvInts("VIDEO_ALLOWED_FPS", []int{24}),
		DefaultDuration:       getEnvInt("VIDEO_DEFAULT_DURATION", 8),
		MaxPromptLength:       getEnvInt("VIDEO_MAX_PROMPT_LENGTH", 2000),
		ModeTextEnabled:       getEnvBool("MODE_TEXT_ENABLED", true),
		ModeImageEnabled:      getEnvBool("MODE_IMAGE_ENABLED", true),
		ModeVideoEnabled:      getEnvBool("MODE_VIDEO_ENABLED", false),
		ForwardSampleCount:    getEnvBool("FORWARD_SAMPLE_COUNT", false),
		ForwardSeed:           getEnvBool("FORWARD_SEED", false),
		ForwardNegativePrompt: getEnvBool("FORWARD_NEGATIVE_PROMPT", false),
		ForwardGenerateAudio:  getEnvBool("FORWARD_GENERATE_AUDIO", false),
		ForwardResolution:     getEnvBool("FORWARD_RESOLUTION", false),

		Provider:        strings.ToLower(getEnv("PROVIDER", "synthetic")),
		VertexProject:   os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:  getEnv("VERTEX_LOCATION", "us-central1"),
		VertexBaseURL:   os.Getenv("VERTEX_BASE_URL"),
		VeoModel:        getEnv("VEO_MODEL", "veo-3.0-generate-001"),
		VeoFastModel:    getEnv("VEO_FAST_MODEL", "veo-3.0-fast-generate-001"),
		VertexOutputGCS: os.Getenv("VERTEX_OUTPUT_GCS_URI"),

		StorageBackend:    strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/assets"),
		StorageSigningKey: os.Getenv("STORAGE_SIGNING_KEY"),
		GCSBucket:         os.Getenv("GCS_BUCKET"),

		YouTubeClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
		YouTubeClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
		YouTubeRedirectURL:  os.Getenv("YOUTUBE_REDIRECT_URL"),
		YouTubeTokenTTL:     time.Hour * time.Duration(getEnvInt("YOUTUBE_TOKEN_TTL_HOURS", 720)),
	}

	loc, err := time.LoadLocation(getEnv("QUOTA_TIMEZONE", "UTC"))
	if err != nil {
		return nil, errors.Wrap(err, "QUOTA_TIMEZONE")
	}
	cfg.QuotaLocation = loc

	if cfg.StorageSigningKey == "" {
		cfg.StorageSigningKey = cfg.JWTSecret
	}

	switch cfg.AuthMode {
	case "hs256":
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET is required")
		}
	case "google":
		if cfg.GoogleClientID == "" {
			return nil, errors.New("GOOGLE_CLIENT_ID is required when AUTH_MODE=google")
		}
	default:
		return nil, errors.Newf("AUTH_MODE %q is not supported", cfg.AuthMode)
	}

	switch cfg.Provider {
	case "synthetic":
	case "vertex":
		if cfg.VertexProject == "" {
			return nil, errors.New("VERTEX_PROJECT_ID is required when PROVIDER=vertex")
		}
	default:
		return nil, errors.Newf("PROVIDER %q is not supported", cfg.Provider)
	}

	switch cfg.StorageBackend {
	case "local":
		if cfg.StorageSigningKey == "" {
			return nil, errors.New("STORAGE_SIGNING_KEY is required for local storage")
		}
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, errors.New("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
		}
	default:
		return nil, errors.Newf("STORAGE_BACKEND %q is not supported", cfg.StorageBackend)
	}

	// Provider-side output lands in GCS and only the GCS store can sign it.
	if cfg.Provider == "vertex" && cfg.VertexOutputGCS != "" {
		if cfg.StorageBackend != "gcs" {
			return nil, errors.New("VERTEX_OUTPUT_GCS_URI requires STORAGE_BACKEND=gcs")
		}
		if !strings.HasPrefix(cfg.VertexOutputGCS, "gs://") {
			return nil, errors.New("VERTEX_OUTPUT_GCS_URI must start with gs://")
		}
	}

	if len(cfg.AllowedDurations) == 0 {
		return nil, errors.New("VIDEO_ALLOWED_DURATIONS must not be empty")
	}
	sort.Ints(cfg.AllowedDurations)

	return cfg, nil
}

// JWTSettings are the HS256 secret and issuer shared by the API and the
// devtoken command.
type JWTSettings struct {
	Secret string
	Issuer string
}

// LoadJWTSettings reads JWT_SECRET verbatim and JWT_ISSUER with its default.
func LoadJWTSettings() JWTSettings {
	return JWTSettings{
		Secret: os.Getenv("JWT_SECRET"),
		Issuer: getEnv("JWT_ISSUER", "veo-backend"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInts(key string, fallback []int) []int {
	parts := getEnvList(key, nil)
	if parts == nil {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		i, err := strconv.Atoi(part)
		if err != nil {
			return fallback
		}
		out = append(out, i)
	}
	return out
}
