package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/usecase"
)

const dateLayout = "2006-01-02"

// TrainingHandler serves training records.
type TrainingHandler struct {
	trainings *usecase.TrainingService
}

func NewTrainingHandler(trainings *usecase.TrainingService) *TrainingHandler {
	return &TrainingHandler{trainings: trainings}
}

// ListMine returns the caller's training, filtered by status or a start date
// range when the query asks for it.
func (h *TrainingHandler) ListMine(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	ctx := c.Request.Context()

	var (
		trainings []domain.Training
		err       error
	)
	switch {
	case c.Query("status") != "":
		trainings, err = h.trainings.ListByStatus(ctx, ident.UserID, domain.TrainingStatus(c.Query("status")))
	case c.Query("from") != "" || c.Query("to") != "":
		from, to, ok := parseDateRange(c)
		if !ok {
			return
		}
		trainings, err = h.trainings.ListByDateRange(ctx, ident.UserID, from, to)
	default:
		trainings, err = h.trainings.ListUserTrainings(ctx, ident.UserID)
	}
	if err != nil {
		respondRecordError(c, err, "failed to list training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponses(trainings))
}

func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, err := time.Parse(dateLayout, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "from must be a date in YYYY-MM-DD format"))
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(dateLayout, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "to must be a date in YYYY-MM-DD format"))
		return time.Time{}, time.Time{}, false
	}
	// The range is inclusive of the whole final day.
	return from, to.Add(24*time.Hour - time.Nanosecond), true
}

// ListForUser returns the training of the user in the path.
func (h *TrainingHandler) ListForUser(c *gin.Context) {
	trainings, err := h.trainings.ListUserTrainings(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRecordError(c, err, "failed to list training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponses(trainings))
}

// Upcoming returns the caller's planned training that has not started yet.
func (h *TrainingHandler) Upcoming(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	trainings, err := h.trainings.Upcoming(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to list upcoming training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponses(trainings))
}

// Completed returns the caller's completed training.
func (h *TrainingHandler) Completed(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	trainings, err := h.trainings.Completed(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to list completed training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponses(trainings))
}

// Stats summarises the caller's training.
func (h *TrainingHandler) Stats(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	stats, err := h.trainings.Stats(c.Request.Context(), ident.UserID)
	if err != nil {
		respondRecordError(c, err, "failed to load training statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Get returns one training record the caller may see.
func (h *TrainingHandler) Get(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	training, err := h.trainings.ValidateOwnership(c.Request.Context(), c.Param("id"), ident)
	if err != nil {
		respondRecordError(c, err, "failed to load training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponse(training))
}

// Create records a training for the caller.
func (h *TrainingHandler) Create(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[TrainingRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid training payload"))
		return
	}

	training, err := h.trainings.AddTraining(c.Request.Context(), ident.UserID, req.training())
	if err != nil {
		respondRecordError(c, err, "failed to add training")
		return
	}
	c.JSON(http.StatusCreated, newTrainingResponse(training))
}

// Update applies a partial edit.
func (h *TrainingHandler) Update(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	req, ok := middleware.Model[TrainingPatchRequest](c)
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid training payload"))
		return
	}

	training, err := h.trainings.UpdateTraining(c.Request.Context(), ident, c.Param("id"), req.patch())
	if err != nil {
		respondRecordError(c, err, "failed to update training")
		return
	}
	c.JSON(http.StatusOK, newTrainingResponse(training))
}

// Delete removes a training record.
func (h *TrainingHandler) Delete(c *gin.Context) {
	ident, _ := middleware.CurrentIdentity(c)
	if err := h.trainings.DeleteTraining(c.Request.Context(), ident, c.Param("id")); err != nil {
		respondRecordError(c, err, "failed to delete training")
		return
	}
	c.Status(http.StatusNoContent)
}
