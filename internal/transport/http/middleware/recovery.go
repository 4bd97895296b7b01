package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/arklim/skills-audit/internal/infra/logger"
)

// Recovery turns a panic in any later handler into a generic 500 answer.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	log = appLogger.OrNop(log)

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			appLogger.Enrich(c.Request.Context(), log).Error("unhandled panic",
				zap.String("panic", fmt.Sprint(r)),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, newErrorResponse(c, "An internal server error occurred"))
		}()
		c.Next()
	}
}
