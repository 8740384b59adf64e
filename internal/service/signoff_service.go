package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

const signoffIDLength = 10

// SignoffID derives the public signoff code of an applicant: a keyed BLAKE2b MAC of the
// applicant ID, hex encoded and truncated.
func SignoffID(secret, applicantID string) string {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return ""
	}
	h.Write([]byte(applicantID))
	return hex.EncodeToString(h.Sum(nil))[:signoffIDLength]
}

type signoffApplicantReader interface {
	FindByMail(ctx context.Context, exec sqlx.ExtContext, mail string) (*models.Applicant, error)
	LoadAttendances(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error
}

type attendanceRemover interface {
	Remove(ctx context.Context, applicantID, courseID string, notify bool) ([]string, error)
}

// SignoffConfig configures self-service signoff.
type SignoffConfig struct {
	Secret string
	Window time.Duration
}

// SignoffService lets applicants leave a course on their own.
type SignoffService struct {
	applicants signoffApplicantReader
	remover    attendanceRemover
	cfg        SignoffConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSignoffService constructs a SignoffService.
func NewSignoffService(applicants signoffApplicantReader, remover attendanceRemover, cfg SignoffConfig, validate *validator.Validate, logger *zap.Logger) *SignoffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Window <= 0 {
		cfg.Window = 7 * 24 * time.Hour
	}
	return &SignoffService{applicants: applicants, remover: remover, cfg: cfg, validator: validate, logger: logger}
}

// Signoff removes the attendance when the signoff id matches and the signoff period is open.
// Signoff is open before the first-come-first-served phase starts and for a window after registration.
// Administrators may override failed checks; the overridden checks come back as warnings.
func (s *SignoffService) Signoff(ctx context.Context, req dto.SignoffRequest, actor *models.JWTClaims, now time.Time) ([]string, error) {
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signoff payload")
	}

	applicant, err := s.applicants.FindByMail(ctx, nil, req.Mail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "signoff failed: unknown mail address")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := s.applicants.LoadAttendances(ctx, nil, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendances")
	}

	checks := newPreconditions(isPrivileged(actor))
	expected := SignoffID(s.cfg.Secret, applicant.ID)
	checks.require(subtle.ConstantTimeCompare([]byte(req.SignoffID), []byte(expected)) == 1,
		appErrors.ErrPreconditionFailed, "signoff failed: invalid signoff id")

	att := applicant.Attendance(req.CourseID)
	checks.require(att != nil, appErrors.ErrPreconditionFailed, "signoff failed: not registered for this course")
	if att != nil && att.Course != nil && att.Course.Language != nil {
		inWindow := now.Before(att.Registered.Add(s.cfg.Window))
		beforeFCFS := now.Before(att.Course.Language.SignupFCFSBegin)
		checks.require(inWindow || beforeFCFS, appErrors.ErrPreconditionFailed, "signoff period expired, please contact the course office")
	}
	if err := checks.err(); err != nil {
		return nil, err
	}
	if att == nil {
		return checks.warnings, nil
	}

	warnings, err := s.remover.Remove(ctx, applicant.ID, req.CourseID, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("applicant signed off", zap.String("applicant_id", applicant.ID), zap.String("course_id", req.CourseID))
	return append(checks.warnings, warnings...), nil
}
