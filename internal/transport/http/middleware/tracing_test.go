package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestTracingOpensServerSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	router := gin.New()
	router.Use(Tracing(), EnrichContext())
	router.GET("/skills/:id", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/skills/42", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "GET /skills/:id" {
		t.Fatalf("unexpected span name %q", span.Name())
	}
	if got := rr.Header().Get(TraceIDHeader); got != span.SpanContext().TraceID().String() {
		t.Fatalf("trace header %q does not match span trace id %s", got, span.SpanContext().TraceID())
	}
	if span.Status().Code.String() != "Error" {
		t.Fatalf("expected error status for 500, got %v", span.Status())
	}
}
