package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

const (
	vacancyCacheKey = "catalog:vacancies"
	// VacancyCachePattern matches every cached vacancy payload.
	VacancyCachePattern = "catalog:vacancies*"
)

type languageStore interface {
	List(ctx context.Context) ([]models.Language, error)
	FindByID(ctx context.Context, id string) (*models.Language, error)
	Create(ctx context.Context, language *models.Language) error
	Update(ctx context.Context, language *models.Language) error
}

type courseStore interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
}

type logReader interface {
	List(ctx context.Context, courseID string, limit int) ([]models.LogEntry, error)
}

// CatalogService manages languages and courses and reports their occupancy.
type CatalogService struct {
	languages languageStore
	courses   courseStore
	logs      logReader
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(languages languageStore, courses courseStore, logs logReader, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{languages: languages, courses: courses, logs: logs, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// ListLanguages returns every language with its courses.
func (s *CatalogService) ListLanguages(ctx context.Context) ([]models.LanguageWithCourses, error) {
	languages, err := s.languages.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list languages")
	}
	courses, err := s.courses.List(ctx, nil, models.CourseFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	byLanguage := make(map[string][]models.Course, len(languages))
	for _, course := range courses {
		byLanguage[course.LanguageID] = append(byLanguage[course.LanguageID], course)
	}
	result := make([]models.LanguageWithCourses, 0, len(languages))
	for _, language := range languages {
		items := byLanguage[language.ID]
		if items == nil {
			items = []models.Course{}
		}
		result = append(result, models.LanguageWithCourses{Language: language, Courses: items})
	}
	return result, nil
}

// ListCourses returns the courses of a language.
func (s *CatalogService) ListCourses(ctx context.Context, languageID string) (*models.LanguageWithCourses, error) {
	language, err := s.languages.FindByID(ctx, languageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "language not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load language")
	}
	courses, err := s.courses.List(ctx, nil, models.CourseFilter{LanguageID: languageID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return &models.LanguageWithCourses{Language: *language, Courses: courses}, nil
}

// GetCourse returns one course.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Vacancies lists courses with free seats. Results are cached until the next mutation.
func (s *CatalogService) Vacancies(ctx context.Context) ([]models.Vacancy, error) {
	return remember(ctx, s.cache, vacancyCacheKey, s.cacheTTL, s.loadVacancies)
}

func (s *CatalogService) loadVacancies(ctx context.Context) ([]models.Vacancy, error) {
	courses, err := s.courses.List(ctx, nil, models.CourseFilter{OnlyVacant: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list vacancies")
	}
	vacancies := make([]models.Vacancy, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		if course.FreeSeats() == 0 {
			continue
		}
		vacancies = append(vacancies, models.Vacancy{CourseID: course.ID, Name: course.FullName(), FreeSeats: course.FreeSeats()})
	}
	return vacancies, nil
}

// Statistics reports seat usage of every course.
func (s *CatalogService) Statistics(ctx context.Context) ([]models.CourseStatistics, error) {
	courses, err := s.courses.List(ctx, nil, models.CourseFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	stats := make([]models.CourseStatistics, 0, len(courses))
	for i := range courses {
		course := &courses[i]
		stats = append(stats, models.CourseStatistics{
			CourseID: course.ID,
			Name:     course.FullName(),
			Limit:    course.Limit,
			Active:   course.ActiveCount,
			Waiting:  course.WaitingCount,
			Free:     course.FreeSeats(),
		})
	}
	return stats, nil
}

// Logs returns the newest course log entries.
func (s *CatalogService) Logs(ctx context.Context, courseID string, limit int) ([]models.LogEntry, error) {
	entries, err := s.logs.List(ctx, courseID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list log entries")
	}
	return entries, nil
}

// CreateLanguage validates the calendar and stores a new language.
func (s *CatalogService) CreateLanguage(ctx context.Context, req dto.LanguageRequest) (*models.Language, error) {
	language, err := s.buildLanguage(req)
	if err != nil {
		return nil, err
	}
	if err := s.languages.Create(ctx, language); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create language")
	}
	return language, nil
}

// UpdateLanguage replaces name and calendar of a language.
func (s *CatalogService) UpdateLanguage(ctx context.Context, id string, req dto.LanguageRequest) (*models.Language, error) {
	existing, err := s.languages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "language not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load language")
	}
	language, err := s.buildLanguage(req)
	if err != nil {
		return nil, err
	}
	language.ID = existing.ID
	language.CreatedAt = existing.CreatedAt
	if err := s.languages.Update(ctx, language); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update language")
	}
	// vacancies carry the language name
	s.invalidate(ctx)
	return language, nil
}

// CreateCourse stores a new course.
func (s *CatalogService) CreateCourse(ctx context.Context, req dto.CourseRequest) (*models.Course, error) {
	course, err := s.buildCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidate(ctx)
	return course, nil
}

// UpdateCourse modifies a course.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req dto.CourseRequest) (*models.Course, error) {
	existing, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.buildCourse(ctx, req)
	if err != nil {
		return nil, err
	}
	existing.LanguageID = course.LanguageID
	existing.Level = course.Level
	existing.Alternative = course.Alternative
	existing.Limit = course.Limit
	existing.Price = course.Price
	if err := s.courses.Update(ctx, existing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidate(ctx)
	return existing, nil
}

func (s *CatalogService) buildLanguage(req dto.LanguageRequest) (*models.Language, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid language payload")
	}
	fields := []string{req.SignupBegin, req.SignupRndWindowEnd, req.SignupManualEnd, req.SignupFCFSBegin, req.SignupEnd}
	parsed := make([]time.Time, len(fields))
	for i, raw := range fields {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid timestamp %q", raw))
		}
		parsed[i] = ts.UTC()
	}
	for i := 1; i < len(parsed); i++ {
		if parsed[i].Before(parsed[i-1]) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "signup calendar must be in chronological order")
		}
	}
	return &models.Language{
		Name:               strings.TrimSpace(req.Name),
		SignupBegin:        parsed[0],
		SignupRndWindowEnd: parsed[1],
		SignupManualEnd:    parsed[2],
		SignupFCFSBegin:    parsed[3],
		SignupEnd:          parsed[4],
	}, nil
}

func (s *CatalogService) buildCourse(ctx context.Context, req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.languages.FindByID(ctx, req.LanguageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "language does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load language")
	}
	return &models.Course{
		LanguageID:  req.LanguageID,
		Level:       strings.TrimSpace(req.Level),
		Alternative: strings.TrimSpace(req.Alternative),
		Limit:       req.Limit,
		Price:       req.Price,
	}, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, VacancyCachePattern); err != nil {
		s.logger.Warn("failed to invalidate vacancy cache", zap.Error(err))
	}
}
