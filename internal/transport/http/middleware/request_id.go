package middleware

import (
	"context"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arklim/skills-audit/internal/ids"
	"github.com/arklim/skills-audit/internal/infra/logger"
)

const (
	// RequestIDHeader carries the per-request correlation id in both directions.
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// Caller supplied ids end up in logs and spans, so only short tokens are echoed.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// RequestID accepts a well formed X-Request-ID or mints a ULID, then stores it
// on the gin context, the request context (for logger.Enrich), the
// RequestContext built by EnrichContext and the active span.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if !requestIDPattern.MatchString(reqID) {
			reqID = ids.New()
		}

		c.Set(requestIDKey, reqID)
		c.Writer.Header().Set(RequestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		if reqCtx, ok := c.Get("request_context"); ok {
			if rc, ok := reqCtx.(*RequestContext); ok {
				rc.RequestID = reqID
			}
		}
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request.id", reqID))

		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "" when it did not run.
func GetRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	if id, ok := c.Request.Context().Value(logger.RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}
