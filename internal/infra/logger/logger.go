package logger

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arklim/skills-audit/internal/core/domain"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// RequestIDKey stores the request identifier on a context.
type RequestIDKey struct{}

// TraceIDKey stores the trace identifier on a context.
type TraceIDKey struct{}

// New returns the process-wide logger. Production builds JSON output; every
// other environment gets the colourised console encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.InitialFields = map[string]any{"service": "skills-audit"}

		lg, err = cfg.Build()
	})

	return lg, err
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithContext returns the base logger decorated with the request, trace and user
// identifiers carried by ctx.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base = zap.NewNop()
	}
	return Enrich(ctx, base)
}

// Enrich decorates l with the identifiers carried by ctx.
func Enrich(ctx context.Context, l *zap.Logger) *zap.Logger {
	l = OrNop(l)
	if ctx == nil {
		return l
	}

	var fields []zap.Field
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(TraceIDKey{}).(string); ok && id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	if ident, ok := domain.IdentityFromContext(ctx); ok {
		fields = append(fields, zap.String("user_id", ident.UserID))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

var (
	emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)
	phoneRegex = regexp.MustCompile(`^(\+27|0)(\d{5})(\d{4})$`)
)

// MaskEmail keeps the first three characters of the local part and the domain.
// thandi.mokoena@treasury.gov.za -> tha***@treasury.gov.za
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	if at := strings.LastIndex(email, "@"); at >= 0 {
		return "***" + email[at:]
	}
	return "***"
}

// MaskPhone keeps the dialling prefix and the last four digits.
// +27821234567 -> +27***4567
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	if matches := phoneRegex.FindStringSubmatch(phone); len(matches) == 4 {
		return matches[1] + "***" + matches[3]
	}
	if len(phone) > 4 {
		return "***" + phone[len(phone)-4:]
	}
	return "***"
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		if parts := strings.Split(ip, "."); len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}
	if strings.Contains(ip, ":") {
		if parts := strings.Split(ip, ":"); len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}
	return "***"
}
