package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/middleware"
)

func main() {
	_ = godotenv.Load()

	var (
		subFlag   string
		emailFlag string
		ttlFlag   time.Duration
	)
	flag.StringVar(&subFlag, "sub", "", "Subject (user id) carried by the token")
	flag.StringVar(&emailFlag, "email", "", "Optional email claim")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	sub := strings.TrimSpace(subFlag)
	if sub == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(1)
	}

	// Same reading as the API so tokens verify against its HS256 verifier.
	settings := infra.LoadJWTSettings()
	if settings.Secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "devtoken").Str("sub", sub).Logger()
	token, err := middleware.SignJWT(settings.Secret, settings.Issuer, sub, strings.TrimSpace(emailFlag), ttlFlag)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sign token")
		os.Exit(1)
	}
	logger.Debug().Dur("ttl", ttlFlag).Msg("token issued")

	fmt.Println(token)
}
