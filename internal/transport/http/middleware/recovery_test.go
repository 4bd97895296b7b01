package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func TestRecoveryAnswersGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(EnrichContext(), Recovery(zaptest.NewLogger(t)))
	router.GET("/boom", func(c *gin.Context) {
		panic("nil map write")
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "An internal server error occurred") || strings.Contains(body, "nil map write") {
		t.Fatalf("unexpected body %q", body)
	}
}
