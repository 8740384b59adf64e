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

type catalogService interface {
	ListLanguages(ctx context.Context) ([]models.LanguageWithCourses, error)
	ListCourses(ctx context.Context, languageID string) (*models.LanguageWithCourses, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	Vacancies(ctx context.Context) ([]models.Vacancy, error)
	Statistics(ctx context.Context) ([]models.CourseStatistics, error)
	Logs(ctx context.Context, courseID string, limit int) ([]models.LogEntry, error)
	CreateLanguage(ctx context.Context, req dto.LanguageRequest) (*models.Language, error)
	UpdateLanguage(ctx context.Context, id string, req dto.LanguageRequest) (*models.Language, error)
	CreateCourse(ctx context.Context, req dto.CourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, id string, req dto.CourseRequest) (*models.Course, error)
}

// CatalogHandler exposes languages, courses and their occupancy.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler builds a new handler.
func NewCatalogHandler(service catalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListLanguages godoc
// @Summary List languages with their courses
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /languages [get]
func (h *CatalogHandler) ListLanguages(c *gin.Context) {
	items, err := h.service.ListLanguages(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListCourses godoc
// @Summary List the courses of a language
// @Tags Catalog
// @Produce json
// @Param id path string true "Language ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /languages/{id}/courses [get]
func (h *CatalogHandler) ListCourses(c *gin.Context) {
	item, err := h.service.ListCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// GetCourse godoc
// @Summary Get a course
// @Tags Catalog
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CatalogHandler) GetCourse(c *gin.Context) {
	course, err := h.service.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Vacancies godoc
// @Summary List courses with free seats
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /vacancies [get]
func (h *CatalogHandler) Vacancies(c *gin.Context) {
	items, err := h.service.Vacancies(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Statistics godoc
// @Summary Seat usage per course
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/statistics/courses [get]
func (h *CatalogHandler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Logs godoc
// @Summary Newest course log entries
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Course ID filter"
// @Param limit query int false "Maximum entries (default 100)"
// @Success 200 {object} response.Envelope
// @Router /admin/logs [get]
func (h *CatalogHandler) Logs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a positive number"))
			return
		}
		limit = parsed
	}
	entries, err := h.service.Logs(c.Request.Context(), c.Query("courseId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// CreateLanguage godoc
// @Summary Create a language
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.LanguageRequest true "Language payload"
// @Success 201 {object} response.Envelope
// @Router /admin/languages [post]
func (h *CatalogHandler) CreateLanguage(c *gin.Context) {
	var req dto.LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid language payload"))
		return
	}
	language, err := h.service.CreateLanguage(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, language)
}

// UpdateLanguage godoc
// @Summary Update a language
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Language ID"
// @Param payload body dto.LanguageRequest true "Language payload"
// @Success 200 {object} response.Envelope
// @Router /admin/languages/{id} [put]
func (h *CatalogHandler) UpdateLanguage(c *gin.Context) {
	var req dto.LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid language payload"))
		return
	}
	language, err := h.service.UpdateLanguage(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, language)
}

// CreateCourse godoc
// @Summary Create a course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /admin/courses [post]
func (h *CatalogHandler) CreateCourse(c *gin.Context) {
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update a course
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /admin/courses/{id} [put]
func (h *CatalogHandler) UpdateCourse(c *gin.Context) {
	var req dto.CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid course payload"))
		return
	}
	course, err := h.service.UpdateCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}
