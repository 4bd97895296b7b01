package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/infra/security"
)

const jwksCacheControl = "public, max-age=3600"

// JWKSHandler publishes the keys that verify tokens issued by the local identity provider.
type JWKSHandler struct {
	manager *security.TokenManager
}

// NewJWKSHandler constructs a JWKS handler backed by the supplied manager.
func NewJWKSHandler(manager *security.TokenManager) *JWKSHandler {
	return &JWKSHandler{manager: manager}
}

// Keys answers 503 when tokens come from a hosted provider.
func (h *JWKSHandler) Keys(c *gin.Context) {
	if h == nil || h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "jwks not available"))
		return
	}

	payload, err := h.manager.JWKS()
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to render jwks"))
		return
	}

	c.Header("Cache-Control", jwksCacheControl)
	c.Data(http.StatusOK, "application/json", payload)
}
