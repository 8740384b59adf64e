package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

func TestExportCourseList(t *testing.T) {
	courses := &catalogCourseStub{courses: []models.Course{{ID: "c1", LanguageName: "English", Level: "A1", Alternative: "morning"}}}
	registered := time.Date(2024, 9, 2, 9, 30, 0, 0, time.UTC)
	lister := &attendanceListerStub{details: []models.AttendanceDetail{{
		Attendance: models.Attendance{ApplicantID: "x", CourseID: "c1", Discount: 1, Registered: registered},
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Mail:       "ada@example.org",
		Tag:        "MA",
	}}}
	svc := NewExportService(courses, lister, nil, time.UTC, zap.NewNop())

	result, err := svc.CourseList(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "English A1 morning.csv", result.FileName)
	assert.Equal(t, "text/csv; charset=utf-8", result.ContentType)
	require.NotNil(t, lister.filter.Waiting)
	assert.False(t, *lister.filter.Waiting)

	lines := strings.Split(strings.TrimSpace(string(result.Body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Name;Mail;Tag;Course;Discount;Registered", lines[0])
	assert.Equal(t, "Ada Lovelace;ada@example.org;MA;English A1 morning;100%;2024-09-02 09:30", lines[1])
}

func TestExportCourseListUnknownCourse(t *testing.T) {
	svc := NewExportService(&catalogCourseStub{}, &attendanceListerStub{}, nil, nil, nil)

	_, err := svc.CourseList(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.CourseList(context.Background())
	require.Error(t, err)
}
