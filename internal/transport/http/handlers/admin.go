package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// JobRunner triggers a scheduled job outside its schedule.
type JobRunner interface {
	RunNow(ctx context.Context, name string) error
}

// AdminHandler exposes operational actions for administrators.
type AdminHandler struct {
	jobs        JobRunner
	reminderJob string
}

func NewAdminHandler(jobs JobRunner, reminderJob string) *AdminHandler {
	return &AdminHandler{jobs: jobs, reminderJob: reminderJob}
}

// RunReminders runs the training reminder job immediately.
func (h *AdminHandler) RunReminders(c *gin.Context) {
	if h == nil || h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "reminders are disabled"))
		return
	}
	if err := h.jobs.RunNow(c.Request.Context(), h.reminderJob); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "reminder run failed"))
		return
	}
	c.JSON(http.StatusOK, ReminderRunResponse{Job: h.reminderJob, Triggered: time.Now().UTC()})
}
