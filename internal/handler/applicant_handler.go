package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type applicantService interface {
	Search(ctx context.Context, query string, limit int) ([]models.Applicant, error)
	Get(ctx context.Context, id string) (*models.Applicant, error)
	Update(ctx context.Context, id string, req dto.ApplicantUpdateRequest) (*models.Applicant, error)
	Duplicates(ctx context.Context) ([]models.DuplicateGroup, error)
}

// ApplicantHandler serves applicant lookup and editing for the administration.
type ApplicantHandler struct {
	service applicantService
}

// NewApplicantHandler builds a new handler.
func NewApplicantHandler(service applicantService) *ApplicantHandler {
	return &ApplicantHandler{service: service}
}

// Search godoc
// @Summary Search applicants by name, mail or tag
// @Tags Applicants
// @Produce json
// @Security BearerAuth
// @Param q query string false "Whitespace separated words, each must match"
// @Param limit query int false "Maximum number of results"
// @Success 200 {object} response.Envelope
// @Router /admin/applicants [get]
func (h *ApplicantHandler) Search(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a number"))
			return
		}
		limit = parsed
	}
	items, err := h.service.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get an applicant with attendances
// @Tags Applicants
// @Produce json
// @Security BearerAuth
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/applicants/{id} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, applicant)
}

// Update godoc
// @Summary Edit the personal data of an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Applicant ID"
// @Param payload body dto.ApplicantUpdateRequest true "Applicant payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applicants/{id} [put]
func (h *ApplicantHandler) Update(c *gin.Context) {
	var req dto.ApplicantUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid applicant payload"))
		return
	}
	applicant, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, applicant)
}

// Duplicates godoc
// @Summary List applicants registered more than once under the same tag
// @Tags Applicants
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/duplicates [get]
func (h *ApplicantHandler) Duplicates(c *gin.Context) {
	groups, err := h.service.Duplicates(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, groups)
}
