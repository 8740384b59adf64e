package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type announcementService interface {
	Send(ctx context.Context, req dto.AnnouncementRequest) (*dto.AnnouncementResult, error)
}

// AnnouncementHandler mails free-text messages to course participants.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler builds a new handler.
func NewAnnouncementHandler(service announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// Send godoc
// @Summary Mail a message to the participants of courses
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AnnouncementRequest true "Announcement payload"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/announcements [post]
func (h *AnnouncementHandler) Send(c *gin.Context) {
	var req dto.AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid announcement payload"))
		return
	}
	result, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if len(result.Unsent) > 0 {
		meta = map[string]interface{}{"warnings": []string{"some announcements could not be queued"}}
	}
	response.JSON(c, http.StatusAccepted, result, nil, meta)
}
