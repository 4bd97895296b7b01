package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/usecase"
)

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	notifications *usecase.NotificationService
}

func NewNotificationHandler(notifications *usecase.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	items, err := h.notifications.List(c.Request.Context(), ident.UserID, queryBool(c, "unread"))
	if err != nil {
		respondRecordError(c, err, "failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, newNotificationResponses(items))
}

// MarkRead flags one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	if err := h.notifications.MarkRead(c.Request.Context(), ident.UserID, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to update notification")
		return
	}
	c.Status(http.StatusNoContent)
}
