package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/internal/service"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/response"
)

type attendanceService interface {
	ListByCourse(ctx context.Context, courseID string, waiting *bool) ([]models.AttendanceDetail, error)
	Add(ctx context.Context, req dto.AddAttendanceRequest) (*models.Attendance, []string, error)
	Remove(ctx context.Context, applicantID, courseID string, notify bool) ([]string, error)
	UpdateStatus(ctx context.Context, applicantID, courseID string, req dto.UpdateAttendanceStatusRequest) (*models.Attendance, []string, error)
}

type courseExporter interface {
	CourseList(ctx context.Context, courseIDs ...string) (*service.ExportResult, error)
}

// AttendanceHandler exposes manual attendance management for course administrators.
type AttendanceHandler struct {
	service  attendanceService
	exporter courseExporter
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceService, exporter courseExporter) *AttendanceHandler {
	return &AttendanceHandler{service: service, exporter: exporter}
}

// ListByCourse godoc
// @Summary List the attendances of a course
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param waiting query bool false "Filter by waiting state"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/{id}/attendances [get]
func (h *AttendanceHandler) ListByCourse(c *gin.Context) {
	var waiting *bool
	if raw := c.Query("waiting"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "waiting must be true or false"))
			return
		}
		waiting = &parsed
	}
	items, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"), waiting)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Add godoc
// @Summary Book an applicant into a course
// @Tags Attendances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.AddAttendanceRequest true "Attendance payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/attendances [post]
func (h *AttendanceHandler) Add(c *gin.Context) {
	var req dto.AddAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}
	att, warnings, err := h.service.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att, warnings...)
}

// Remove godoc
// @Summary Remove an attendance
// @Tags Attendances
// @Produce json
// @Security BearerAuth
// @Param applicantId path string true "Applicant ID"
// @Param courseId path string true "Course ID"
// @Param notify query bool false "Send a signoff confirmation"
// @Success 200 {object} response.Envelope
// @Router /admin/attendances/{applicantId}/{courseId} [delete]
func (h *AttendanceHandler) Remove(c *gin.Context) {
	notify, _ := strconv.ParseBool(c.DefaultQuery("notify", "false"))
	warnings, err := h.service.Remove(c.Request.Context(), c.Param("applicantId"), c.Param("courseId"), notify)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"removed": true}, warnings...)
}

// UpdateStatus godoc
// @Summary Change waiting state, discount or payment of an attendance
// @Tags Attendances
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param applicantId path string true "Applicant ID"
// @Param courseId path string true "Course ID"
// @Param payload body dto.UpdateAttendanceStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /admin/attendances/{applicantId}/{courseId}/status [put]
func (h *AttendanceHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateAttendanceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	att, warnings, err := h.service.UpdateStatus(c.Request.Context(), c.Param("applicantId"), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, att, warnings...)
}

// Export godoc
// @Summary Download the participant list of a course
// @Tags Attendances
// @Produce text/csv
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {file} file
// @Router /admin/courses/{id}/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	result, err := h.exporter.CourseList(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.FileName, result.ContentType, result.Body)
}
