package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/arklim/skills-audit/internal/core/domain"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *HTTPMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("failed to create http metrics: %v", err)
	}

	gates := NewGates("/auth/login")
	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/api/skills", gates.RequireAuth(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/api/admin/users", gates.RequireRole(domain.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/api/auth/password/strength", AjaxOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/api/skills/:id", func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
	})
	return router, metrics
}

func serve(router *gin.Engine, req *http.Request) int {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr.Code
}

func withIdentityRequest(req *http.Request, role domain.Role) *http.Request {
	ident := domain.Identity{UserID: "u-1", Role: role}
	return req.WithContext(domain.ContextWithIdentity(req.Context(), ident))
}

func TestHTTPMetricsCountsGateRejections(t *testing.T) {
	router, metrics := newMetricsRouter(t)

	anonymous := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	anonymous.Header.Set("Accept", "application/json")
	if code := serve(router, anonymous); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	browser := httptest.NewRequest(http.MethodGet, "/api/skills", nil)
	browser.Header.Set("Accept", "text/html")
	if code := serve(router, browser); code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", code)
	}

	employee := withIdentityRequest(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), domain.RoleEmployee)
	if code := serve(router, employee); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}

	scripted := httptest.NewRequest(http.MethodPost, "/api/auth/password/strength", nil)
	if code := serve(router, scripted); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-AJAX call, got %d", code)
	}

	tests := []struct {
		route  string
		status string
		want   float64
	}{
		{"/api/skills", "401", 1},
		{"/api/skills", "302", 1},
		{"/api/admin/users", "403", 1},
		{"/api/auth/password/strength", "400", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(metrics.Denied.WithLabelValues(tt.route, tt.status)); got != tt.want {
			t.Errorf("denied{%s,%s} = %v, want %v", tt.route, tt.status, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/skills", "401")); got != 1 {
		t.Fatalf("expected the rejected request to be counted once, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("expected in-flight gauge to return to 0, got %v", got)
	}
}

func TestHTTPMetricsIgnoresAdmittedAndHandlerErrors(t *testing.T) {
	router, metrics := newMetricsRouter(t)

	admitted := withIdentityRequest(httptest.NewRequest(http.MethodGet, "/api/admin/users", nil), domain.RoleAdmin)
	if code := serve(router, admitted); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := serve(router, httptest.NewRequest(http.MethodGet, "/api/skills/42", nil)); code != http.StatusBadRequest {
		t.Fatalf("expected handler 400, got %d", code)
	}

	if got := testutil.CollectAndCount(metrics.Denied); got != 0 {
		t.Fatalf("expected no admission denials, got %d series", got)
	}
	if got := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/skills/:id", "400")); got != 1 {
		t.Fatalf("expected request counted under the route template, got %v", got)
	}
	if samples := testutil.CollectAndCount(metrics.Duration); samples != 2 {
		t.Fatalf("expected two duration series, got %d", samples)
	}
}

func TestHTTPMetricsHandlerNoopWhenNil(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	if code := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil)); code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", code)
	}
}
