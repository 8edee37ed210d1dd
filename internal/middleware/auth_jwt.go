package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/http/respond"
	"github.com/Msr7799/veo-backend/internal/infra"
)

// TokenClaims are the claims carried by HS256 identity tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type userKey string

const (
	userIDKey   userKey = "user_id"
	identityKey userKey = "identity"
)

// SignJWT issues an HS256 token for subject valid for ttl.
func SignJWT(secret, issuer, subject, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// HMACVerifier verifies HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier builds a verifier; an empty issuer disables issuer checks.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses token and returns the identity named by its subject.
func (v *HMACVerifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	var claims TokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "verify token"), domain.ErrUnauthenticated)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.Wrap(domain.ErrUnauthenticated, "token has no subject")
	}
	return &domain.Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Claims: map[string]any{
			"iss": claims.Issuer,
		},
	}, nil
}

// AuthJWT requires a valid bearer token and stores the caller identity in
// the request context.
func AuthJWT(verifier domain.IdentityVerifier, logger infra.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				infra.AdmissionRejections.WithLabelValues("auth").Inc()
				respond.Error(w, http.StatusUnauthorized, "unauthorized", "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				infra.AdmissionRejections.WithLabelValues("auth").Inc()
				respond.Error(w, http.StatusUnauthorized, "unauthorized", "invalid authorization")
				return
			}
			identity, err := verifier.Verify(r.Context(), strings.TrimSpace(parts[1]))
			if err != nil {
				logger.Debug().Err(err).Msg("identity verification failed")
				infra.AdmissionRejections.WithLabelValues("auth").Inc()
				respond.Error(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			recordUserID(r.Context(), identity.ID)
			ctx := context.WithValue(r.Context(), userIDKey, identity.ID)
			ctx = context.WithValue(ctx, identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

func IdentityFromContext(ctx context.Context) *domain.Identity {
	if v, ok := ctx.Value(identityKey).(*domain.Identity); ok {
		return v
	}
	return nil
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if strings.TrimSpace(userID) == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, userID)
}

var _ domain.IdentityVerifier = (*HMACVerifier)(nil)
