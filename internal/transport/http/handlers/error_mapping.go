package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/skills-audit/internal/repository"
	"github.com/arklim/skills-audit/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// recordErrorCases covers the failures shared by every record endpoint.
var recordErrorCases = []ErrorCase{
	{Err: usecase.ErrProfileNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrSkillNotFound, Status: http.StatusNotFound, Message: "skill not found"},
	{Err: usecase.ErrTrainingNotFound, Status: http.StatusNotFound, Message: "training not found"},
	{Err: usecase.ErrNotificationNotFound, Status: http.StatusNotFound, Message: "notification not found"},
	{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Err: usecase.ErrSelfModification, Status: http.StatusBadRequest, Message: "you cannot change your own role or status"},
	{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	{Err: repository.ErrConflict, Status: http.StatusConflict, Message: "record already exists"},
	{Err: repository.ErrBatchTooLarge, Status: http.StatusBadRequest, Message: "too many records in one request"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var verr *usecase.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, FieldErrorsResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  verr.Fields,
		})
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondRecordError(c *gin.Context, err error, fallbackMessage string) {
	RespondWithMappedError(c, err, recordErrorCases, http.StatusInternalServerError, fallbackMessage)
}
