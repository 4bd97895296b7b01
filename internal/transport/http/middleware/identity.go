package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/domain"
	appLogger "github.com/arklim/skills-audit/internal/infra/logger"
)

// Session attribute keys set on the gin context for an authenticated request.
const (
	SessionUserIDKey   = "UserId"
	SessionUserRoleKey = "UserRole"
	SessionUserEmail   = "UserEmail"
	SessionUserName    = "UserFullName"
)

// DefaultAuthCookie carries the token for browser clients that cannot set headers.
const DefaultAuthCookie = "auth_token"

// TokenVerifier resolves a bearer token to an account id; "" means invalid.
type TokenVerifier interface {
	GetUserIDFromToken(ctx context.Context, token string) string
}

// ProfileLoader loads the profile behind an account id.
type ProfileLoader interface {
	GetUser(ctx context.Context, uid string) (domain.Profile, error)
}

// ResolveIdentity attaches the caller's identity to the request when a valid
// token for an active profile is presented. It never rejects a request: every
// failure leaves the request unauthenticated for the admission filters to judge.
func ResolveIdentity(tokens TokenVerifier, profiles ProfileLoader, cookieName string, log *zap.Logger) gin.HandlerFunc {
	log = appLogger.OrNop(log)
	if cookieName == "" {
		cookieName = DefaultAuthCookie
	}

	return func(c *gin.Context) {
		if ident, ok := resolve(c, tokens, profiles, cookieName, log); ok {
			c.Request = c.Request.WithContext(domain.ContextWithIdentity(c.Request.Context(), ident))
			c.Set(SessionUserIDKey, ident.UserID)
			c.Set(SessionUserRoleKey, string(ident.Role))
			c.Set(SessionUserEmail, ident.Email)
			c.Set(SessionUserName, ident.FullName)
			if reqCtx := GetRequestContext(c); reqCtx != nil {
				reqCtx.UserID = ident.UserID
			}
		}
		c.Next()
	}
}

func resolve(c *gin.Context, tokens TokenVerifier, profiles ProfileLoader, cookieName string, log *zap.Logger) (ident domain.Identity, ok bool) {
	ctx := c.Request.Context()
	defer func() {
		if r := recover(); r != nil {
			appLogger.Enrich(ctx, log).Error("identity resolution panicked", zap.String("panic", fmt.Sprint(r)), zap.Stack("stack"))
			ident, ok = domain.Identity{}, false
		}
	}()

	token := extractToken(c, cookieName)
	if token == "" {
		return domain.Identity{}, false
	}

	uid := tokens.GetUserIDFromToken(ctx, token)
	if uid == "" {
		return domain.Identity{}, false
	}

	profile, err := profiles.GetUser(ctx, uid)
	if err != nil {
		appLogger.Enrich(ctx, log).Warn("load profile for token", zap.String("user_id", uid), zap.Error(err))
		return domain.Identity{}, false
	}
	if !profile.IsActive {
		appLogger.Enrich(ctx, log).Info("token presented for inactive profile", zap.String("user_id", uid))
		return domain.Identity{}, false
	}
	return domain.IdentityFromProfile(profile), true
}

func extractToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// CurrentIdentity returns the identity resolved for this request.
func CurrentIdentity(c *gin.Context) (domain.Identity, bool) {
	return domain.IdentityFromContext(c.Request.Context())
}
