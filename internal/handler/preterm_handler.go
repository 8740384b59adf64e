package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type pretermIssuer interface {
	Issue(ctx context.Context, req dto.PretermTokenRequest) (*dto.PretermTokenResponse, error)
}

// PretermHandler issues priority signup tokens.
type PretermHandler struct {
	service pretermIssuer
}

// NewPretermHandler builds a new handler.
func NewPretermHandler(service pretermIssuer) *PretermHandler {
	return &PretermHandler{service: service}
}

// Issue godoc
// @Summary Issue and mail a priority signup token
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.PretermTokenRequest true "Recipient"
// @Success 201 {object} response.Envelope
// @Router /admin/preterm-tokens [post]
func (h *PretermHandler) Issue(c *gin.Context) {
	var req dto.PretermTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preterm token payload"))
		return
	}
	resp, err := h.service.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var warnings []string
	if !resp.Mailed {
		warnings = append(warnings, "token mail could not be sent")
	}
	response.Created(c, resp, warnings...)
}
