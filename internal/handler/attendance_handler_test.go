package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/internal/service"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type fakeAttendanceSrv struct {
	err      error
	waiting  *bool
	notify   bool
	removed  string
	statusOf string
	status   dto.UpdateAttendanceStatusRequest
}

func (f *fakeAttendanceSrv) ListByCourse(_ context.Context, courseID string, waiting *bool) ([]models.AttendanceDetail, error) {
	f.waiting = waiting
	return []models.AttendanceDetail{{Attendance: models.Attendance{CourseID: courseID}, Mail: "a@example.org"}}, f.err
}

func (f *fakeAttendanceSrv) Add(_ context.Context, req dto.AddAttendanceRequest) (*models.Attendance, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return &models.Attendance{ApplicantID: req.ApplicantID, CourseID: req.CourseID}, []string{"course is now over its limit"}, nil
}

func (f *fakeAttendanceSrv) Remove(_ context.Context, applicantID, courseID string, notify bool) ([]string, error) {
	f.removed = applicantID + "/" + courseID
	f.notify = notify
	return nil, f.err
}

func (f *fakeAttendanceSrv) UpdateStatus(_ context.Context, applicantID, courseID string, req dto.UpdateAttendanceStatusRequest) (*models.Attendance, []string, error) {
	f.statusOf = applicantID + "/" + courseID
	f.status = req
	return &models.Attendance{ApplicantID: applicantID, CourseID: courseID}, nil, f.err
}

type fakeExporter struct {
	result *service.ExportResult
	err    error
	ids    []string
}

func (f *fakeExporter) CourseList(_ context.Context, ids ...string) (*service.ExportResult, error) {
	f.ids = ids
	return f.result, f.err
}

func TestAttendanceHandlerListParsesWaitingFilter(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv, &fakeExporter{})

	c, rec := newContext(http.MethodGet, "/admin/courses/course-1/attendances?waiting=maybe", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	h.ListByCourse(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodGet, "/admin/courses/course-1/attendances?waiting=true", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	h.ListByCourse(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.waiting)
	assert.True(t, *srv.waiting)

	c, _ = newContext(http.MethodGet, "/admin/courses/course-1/attendances", nil)
	h.ListByCourse(c)
	assert.Nil(t, srv.waiting)
}

func TestAttendanceHandlerAdd(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceSrv{}, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/admin/attendances", dto.AddAttendanceRequest{ApplicantID: "app-1", CourseID: "course-1"})

	h.Add(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, warnings(decode(t, rec)), 1)
}

func TestAttendanceHandlerAddConflict(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceSrv{err: appErrors.Clone(appErrors.ErrConflict, "applicant already attends the course")}, &fakeExporter{})
	c, rec := newContext(http.MethodPost, "/admin/attendances", dto.AddAttendanceRequest{ApplicantID: "app-1", CourseID: "course-1"})

	h.Add(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAttendanceHandlerRemove(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodDelete, "/admin/attendances/app-1/course-1?notify=true", nil)
	c.Params = gin.Params{{Key: "applicantId", Value: "app-1"}, {Key: "courseId", Value: "course-1"}}

	h.Remove(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app-1/course-1", srv.removed)
	assert.True(t, srv.notify)
}

func TestAttendanceHandlerUpdateStatus(t *testing.T) {
	srv := &fakeAttendanceSrv{}
	h := NewAttendanceHandler(srv, &fakeExporter{})
	c, rec := newContext(http.MethodPut, "/admin/attendances/app-1/course-1/status", `{"waiting":false,"discount":0.5}`)
	c.Params = gin.Params{{Key: "applicantId", Value: "app-1"}, {Key: "courseId", Value: "course-1"}}

	h.UpdateStatus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "app-1/course-1", srv.statusOf)
	require.NotNil(t, srv.status.Waiting)
	assert.False(t, *srv.status.Waiting)
	require.NotNil(t, srv.status.Discount)
	assert.InDelta(t, 0.5, *srv.status.Discount, 0.0001)
}

func TestAttendanceHandlerExport(t *testing.T) {
	exporter := &fakeExporter{result: &service.ExportResult{
		FileName:    "english-b1.csv",
		ContentType: "text/csv; charset=utf-8",
		Body:        []byte("Name,Mail\n"),
	}}
	h := NewAttendanceHandler(&fakeAttendanceSrv{}, exporter)
	c, rec := newContext(http.MethodGet, "/admin/courses/course-1/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"course-1"}, exporter.ids)
	assert.Equal(t, `attachment; filename="english-b1.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Name,Mail\n", rec.Body.String())
}

func TestAttendanceHandlerExportFailure(t *testing.T) {
	h := NewAttendanceHandler(&fakeAttendanceSrv{}, &fakeExporter{err: errors.New("db down")})
	c, rec := newContext(http.MethodGet, "/admin/courses/course-1/export", nil)

	h.Export(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
