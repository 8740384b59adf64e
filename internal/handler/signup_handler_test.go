package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/middleware"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type fakeSignupSrv struct {
	resp     *dto.SignupResponse
	warnings []string
	err      error
	req      dto.SignupRequest
	actor    *models.JWTClaims
	now      time.Time
}

func (f *fakeSignupSrv) Signup(_ context.Context, req dto.SignupRequest, actor *models.JWTClaims, now time.Time) (*dto.SignupResponse, []string, error) {
	f.req, f.actor, f.now = req, actor, now
	return f.resp, f.warnings, f.err
}

type fakeSignoffSrv struct {
	err error
	req dto.SignoffRequest
}

func (f *fakeSignoffSrv) Signoff(_ context.Context, req dto.SignoffRequest, _ *models.JWTClaims, _ time.Time) ([]string, error) {
	f.req = req
	return nil, f.err
}

func TestSignupHandlerRejectsMalformedBody(t *testing.T) {
	h := NewSignupHandler(&fakeSignupSrv{}, &fakeSignoffSrv{})
	c, rec := newContext(http.MethodPost, "/signups", "{")

	h.Signup(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignupHandlerCreatesWithWarnings(t *testing.T) {
	fixed := time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)
	srv := &fakeSignupSrv{
		resp:     &dto.SignupResponse{ApplicantID: "app-1", CourseID: "course-1", Waiting: true},
		warnings: []string{"mail could not be queued"},
	}
	h := NewSignupHandler(srv, &fakeSignoffSrv{})
	h.now = func() time.Time { return fixed }
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	c, rec := newContext(http.MethodPost, "/signups", dto.SignupRequest{CourseID: "course-1", Mail: "a@example.org"})
	c.Set(middleware.ContextUserKey, admin)
	h.Signup(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.Contains(t, string(env.Data), `"applicant_id":"app-1"`)
	assert.Len(t, warnings(env), 1)
	assert.Equal(t, "course-1", srv.req.CourseID)
	assert.Same(t, admin, srv.actor)
	assert.True(t, fixed.Equal(srv.now))
}

func TestSignupHandlerMapsServiceError(t *testing.T) {
	h := NewSignupHandler(&fakeSignupSrv{err: appErrors.ErrSignupClosed}, &fakeSignoffSrv{})
	c, rec := newContext(http.MethodPost, "/signups", dto.SignupRequest{CourseID: "course-1"})

	h.Signup(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "SIGNUP_CLOSED", decode(t, rec).Error.Code)
}

func TestSignoffHandler(t *testing.T) {
	srv := &fakeSignoffSrv{}
	h := NewSignupHandler(&fakeSignupSrv{}, srv)
	c, rec := newContext(http.MethodPost, "/signoffs", dto.SignoffRequest{Mail: "a@example.org", CourseID: "course-1", SignoffID: "0123456789"})

	h.Signoff(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "course-1", srv.req.CourseID)
	assert.Contains(t, string(decode(t, rec).Data), `"signed_off":true`)
}

func TestSignoffHandlerForwardsPreconditionFailure(t *testing.T) {
	h := NewSignupHandler(&fakeSignupSrv{}, &fakeSignoffSrv{err: appErrors.Clone(appErrors.ErrPreconditionFailed, "signoff window closed")})
	c, rec := newContext(http.MethodPost, "/signoffs", gin.H{"mail": "a@example.org"})

	h.Signoff(c)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}
