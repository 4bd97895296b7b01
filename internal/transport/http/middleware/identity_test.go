package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/skills-audit/internal/core/domain"
)

type stubTokens map[string]string

func (s stubTokens) GetUserIDFromToken(_ context.Context, token string) string {
	return s[token]
}

type stubProfiles struct {
	profiles map[string]domain.Profile
	panics   bool
}

func (s stubProfiles) GetUser(_ context.Context, uid string) (domain.Profile, error) {
	if s.panics {
		panic("profile store exploded")
	}
	p, ok := s.profiles[uid]
	if !ok {
		return domain.Profile{}, errors.New("not found")
	}
	return p, nil
}

func newIdentityRouter(t *testing.T, profiles stubProfiles) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := stubTokens{"good": "u1", "inactive": "u2", "orphan": "u3"}

	router := gin.New()
	router.Use(EnrichContext(), ResolveIdentity(tokens, profiles, "", zaptest.NewLogger(t)))
	router.GET("/whoami", func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, ident.UserID+"/"+string(ident.Role)+"/"+c.GetString(SessionUserName))
	})
	return router
}

func defaultProfiles() stubProfiles {
	return stubProfiles{profiles: map[string]domain.Profile{
		"u1": {ID: "u1", FirstName: "Thandi", LastName: "Nkosi", Role: domain.RoleManager, IsActive: true},
		"u2": {ID: "u2", FirstName: "Pieter", LastName: "Botha", IsActive: false},
	}}
}

func TestResolveIdentity(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer header", "Bearer good", "", "u1/manager/Thandi Nkosi"},
		{"lowercase scheme", "bearer good", "", "u1/manager/Thandi Nkosi"},
		{"cookie fallback", "", "good", "u1/manager/Thandi Nkosi"},
		{"no token", "", "", "anonymous"},
		{"unknown token", "Bearer forged", "", "anonymous"},
		{"inactive profile", "Bearer inactive", "", "anonymous"},
		{"missing profile", "Bearer orphan", "", "anonymous"},
		{"wrong scheme", "Basic good", "", "anonymous"},
	}

	router := newIdentityRouter(t, defaultProfiles())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: DefaultAuthCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("resolver must never reject, got %d", rr.Code)
			}
			if got := rr.Body.String(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestResolveIdentityRecoversFromPanics(t *testing.T) {
	router := newIdentityRouter(t, stubProfiles{panics: true})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "anonymous" {
		t.Fatalf("expected the request to continue anonymously, got %d %q", rr.Code, rr.Body.String())
	}
}
