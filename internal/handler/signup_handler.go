package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type signupService interface {
	Signup(ctx context.Context, req dto.SignupRequest, actor *models.JWTClaims, now time.Time) (*dto.SignupResponse, []string, error)
}

type signoffService interface {
	Signoff(ctx context.Context, req dto.SignoffRequest, actor *models.JWTClaims, now time.Time) ([]string, error)
}

// SignupHandler exposes public registration endpoints.
type SignupHandler struct {
	signups  signupService
	signoffs signoffService
	now      func() time.Time
}

// NewSignupHandler builds a new handler.
func NewSignupHandler(signups signupService, signoffs signoffService) *SignupHandler {
	return &SignupHandler{signups: signups, signoffs: signoffs, now: time.Now}
}

// Signup godoc
// @Summary Register for a course
// @Description Ordinary registrations join the waiting list; a priority token books a seat right away.
// @Tags Signup
// @Accept json
// @Produce json
// @Param payload body dto.SignupRequest true "Signup payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /signups [post]
func (h *SignupHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signup payload"))
		return
	}
	resp, warnings, err := h.signups.Signup(c.Request.Context(), req, claimsFromContext(c), h.now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp, warnings...)
}

// Signoff godoc
// @Summary Leave a course
// @Tags Signup
// @Accept json
// @Produce json
// @Param payload body dto.SignoffRequest true "Signoff payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /signoffs [post]
func (h *SignupHandler) Signoff(c *gin.Context) {
	var req dto.SignoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid signoff payload"))
		return
	}
	warnings, err := h.signoffs.Signoff(c.Request.Context(), req, claimsFromContext(c), h.now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"signed_off": true, "course_id": req.CourseID}, warnings...)
}
