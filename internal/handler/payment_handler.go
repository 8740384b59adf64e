package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/internal/service"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type paymentService interface {
	Statistics(ctx context.Context) (*service.PaymentSummary, error)
	Outstanding(ctx context.Context) ([]models.OutstandingAttendance, error)
}

// PaymentHandler reports on course fees.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler builds a new handler.
func NewPaymentHandler(service paymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

// Statistics godoc
// @Summary Payment totals per payment method
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/statistics/payments [get]
func (h *PaymentHandler) Statistics(c *gin.Context) {
	summary, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, summary)
}

// Outstanding godoc
// @Summary Active attendances that are not fully paid
// @Tags Statistics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/payments/outstanding [get]
func (h *PaymentHandler) Outstanding(c *gin.Context) {
	items, err := h.service.Outstanding(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
