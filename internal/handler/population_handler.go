package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/service"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type populationTrigger interface {
	Trigger(ctx context.Context) (*service.GlobalPopulationResult, error)
	RemoveParallelWaiting(ctx context.Context, courseIDs []string) (*service.ParallelCleanupResult, error)
}

// PopulationHandler runs the seat assignment on demand.
type PopulationHandler struct {
	trigger populationTrigger
}

// NewPopulationHandler builds a new handler.
func NewPopulationHandler(trigger populationTrigger) *PopulationHandler {
	return &PopulationHandler{trigger: trigger}
}

// Run godoc
// @Summary Run the lottery, first-come-first-served assignment and waiting list update now
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/population/run [post]
func (h *PopulationHandler) Run(c *gin.Context) {
	result, err := h.trigger.Trigger(c.Request.Context())
	if err != nil {
		// seats are committed; only some mails failed
		if result != nil && errors.Is(err, service.ErrNotificationFailed) {
			response.OK(c, result, err.Error())
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// CleanupParallel godoc
// @Summary Delete waiting registrations of applicants holding a seat in a parallel course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ParallelCleanupRequest false "Courses to clean, all when empty"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/population/cleanup-parallel [post]
func (h *PopulationHandler) CleanupParallel(c *gin.Context) {
	var req dto.ParallelCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cleanup payload"))
		return
	}
	result, err := h.trigger.RemoveParallelWaiting(c.Request.Context(), req.CourseIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
