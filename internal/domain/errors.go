package domain

import "github.com/cockroachdb/errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrQuotaExceeded     = errors.New("quota exceeded")
	ErrUnsupportedMode   = errors.New("unsupported mode")
	ErrProvider          = errors.New("provider failure")
	ErrStorage           = errors.New("storage failure")
	ErrUnexpectedOutput  = errors.New("unexpected provider response")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrNotConnected      = errors.New("publishing account not connected")
	ErrJobNotCompleted   = errors.New("job not completed")
)

// Validationf wraps ErrValidation with a caller-facing message.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}
