package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/export"
)

type courseReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportResult is a rendered course list ready for download.
type ExportResult struct {
	FileName    string
	ContentType string
	Body        []byte
}

var courseListHeaders = []string{"Name", "Mail", "Tag", "Course", "Discount", "Registered"}

// ExportService renders course lists of active participants.
type ExportService struct {
	courses     courseReader
	attendances attendanceLister
	csv         csvRenderer
	location    *time.Location
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(courses courseReader, attendances attendanceLister, csv csvRenderer, location *time.Location, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if location == nil {
		location = time.UTC
	}
	return &ExportService{courses: courses, attendances: attendances, csv: csv, location: location, logger: logger}
}

// CourseList exports the active attendances of the given courses.
func (s *ExportService) CourseList(ctx context.Context, courseIDs ...string) (*ExportResult, error) {
	if len(courseIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one course is required")
	}
	waiting := false
	names := make([]string, 0, len(courseIDs))
	rows := make([]map[string]string, 0)
	for _, id := range courseIDs {
		course, err := s.courses.FindByID(ctx, nil, id)
		if err != nil {
			return nil, notFoundOrInternal(err, "course not found", "failed to load course")
		}
		names = append(names, course.FullName())

		details, err := s.attendances.List(ctx, models.AttendanceFilter{CourseID: id, Waiting: &waiting})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
		}
		for _, detail := range details {
			rows = append(rows, map[string]string{
				"Name":       detail.FirstName + " " + detail.LastName,
				"Mail":       detail.Mail,
				"Tag":        detail.Tag,
				"Course":     course.FullName(),
				"Discount":   strconv.FormatFloat(detail.Discount*100, 'f', 0, 64) + "%",
				"Registered": detail.Registered.In(s.location).Format("2006-01-02 15:04"),
			})
		}
	}

	body, err := s.csv.Render(export.Dataset{Headers: courseListHeaders, Rows: rows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render course list")
	}
	s.logger.Info("course list exported", zap.Strings("courses", courseIDs), zap.Int("rows", len(rows)))
	return &ExportResult{
		FileName:    export.FileName(names, "csv"),
		ContentType: s.csv.ContentType(),
		Body:        body,
	}, nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
