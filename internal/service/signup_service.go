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

type courseLocker interface {
	Lock(ctx context.Context, exec sqlx.ExtContext, id string) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
}

type languageReader interface {
	FindByID(ctx context.Context, id string) (*models.Language, error)
}

type applicantStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Applicant, error)
	FindByMail(ctx context.Context, exec sqlx.ExtContext, mail string) (*models.Applicant, error)
	Create(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error
	Update(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error
	LoadAttendances(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error
}

type attendanceWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error
	Update(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error
	Delete(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) error
}

type pretermValidator interface {
	Validate(token string) (string, error)
}

// SignupConfig carries the registration policy.
type SignupConfig struct {
	OverbookingFactor float64
	AttendanceLimit   int
}

// SignupService registers applicants for courses.
type SignupService struct {
	tx          txProvider
	courses     courseLocker
	languages   languageReader
	applicants  applicantStore
	attendances attendanceWriter
	logs        courseLogWriter
	preterm     pretermValidator
	notifier    StatusNotifier
	cache       cacheInvalidator
	cfg         SignupConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSignupService constructs a SignupService.
func NewSignupService(tx txProvider, courses courseLocker, languages languageReader, applicants applicantStore, attendances attendanceWriter, logs courseLogWriter, preterm pretermValidator, notifier StatusNotifier, cache cacheInvalidator, cfg SignupConfig, validate *validator.Validate, logger *zap.Logger) *SignupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OverbookingFactor <= 0 {
		cfg.OverbookingFactor = 4
	}
	if cfg.AttendanceLimit <= 0 {
		cfg.AttendanceLimit = 3
	}
	return &SignupService{
		tx:          tx,
		courses:     courses,
		languages:   languages,
		applicants:  applicants,
		attendances: attendances,
		logs:        logs,
		preterm:     preterm,
		notifier:    notifier,
		cache:       cache,
		cfg:         cfg,
		validator:   validate,
		logger:      logger,
	}
}

// Signup registers the applicant described by req for a course.
//
// Ordinary signups land on the waiting list and are assigned by the next population run.
// A valid priority token books the seat immediately. Failed checks abort with 412 unless
// actor is an administrator, in which case they are returned as warnings.
func (s *SignupService) Signup(ctx context.Context, req dto.SignupRequest, actor *models.JWTClaims, now time.Time) (resp *dto.SignupResponse, warnings []string, err error) {
	req.Normalize()
	if err = s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	var (
		preterm      bool
		tokenMail    string
		tokenInvalid bool
	)
	if req.PretermToken != "" && s.preterm != nil {
		mail, tokenErr := s.preterm.Validate(req.PretermToken)
		if tokenErr != nil {
			tokenInvalid = true
		} else {
			preterm, tokenMail = true, mail
		}
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin signup transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.courses.Lock(ctx, tx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course")
	}
	course, err := s.courses.FindByID(ctx, tx, req.CourseID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	language, err := s.languages.FindByID(ctx, course.LanguageID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load language")
	}
	course.Language = language

	applicant, isNew, err := s.loadOrInitApplicant(ctx, tx, req)
	if err != nil {
		return nil, nil, err
	}
	if applicant.InCourse(course) {
		err = appErrors.Clone(appErrors.ErrConflict, "already registered for this course")
		return nil, nil, err
	}

	checks := newPreconditions(isPrivileged(actor))
	checks.require(!tokenInvalid, appErrors.ErrPreconditionFailed, "the priority signup token is invalid or expired")
	checks.require(language.IsOpenForSignup(now) || preterm, appErrors.ErrSignupClosed,
		fmt.Sprintf("signup for %s is not open", language.Name))
	checks.require(!preterm || strings.EqualFold(tokenMail, req.Mail), appErrors.ErrPreconditionFailed,
		"the mail address does not match the priority signup invitation")
	checks.require(!applicant.ActiveInParallelCourse(course), appErrors.ErrPreconditionFailed,
		"already registered for a parallel course")
	checks.require(!applicant.OverLimit(s.cfg.AttendanceLimit), appErrors.ErrPreconditionFailed,
		"the limit of registrations has been reached")
	checks.require(!course.IsOverbooked(s.cfg.OverbookingFactor), appErrors.ErrCourseOverbooked,
		"the course is overbooked and accepts no more registrations")
	if err = checks.err(); err != nil {
		return nil, nil, err
	}
	warnings = checks.warnings

	if isNew {
		err = s.applicants.Create(ctx, tx, applicant)
	} else {
		err = s.applicants.Update(ctx, tx, applicant)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save applicant")
	}

	waiting := !preterm
	att := &models.Attendance{
		ApplicantID:            applicant.ID,
		CourseID:               course.ID,
		Waiting:                waiting,
		Registered:             now,
		Discount:               applicant.CurrentDiscount(),
		InformedAboutRejection: waiting && language.IsOpenForSignupFCFS(now),
		Applicant:              applicant,
		Course:                 course,
	}
	if err = s.attendances.Create(ctx, tx, att); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register attendance")
	}
	if !waiting {
		if err = s.logs.Append(ctx, tx, bookedLogEntry(att, now)); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit signup")
	}

	applicant.Attendances = append(applicant.Attendances, att)
	if waiting {
		course.WaitingCount++
	} else {
		course.ActiveCount++
	}
	if s.cache != nil {
		if cacheErr := s.cache.Invalidate(ctx, VacancyCachePattern); cacheErr != nil {
			s.logger.Warn("failed to invalidate vacancy cache", zap.Error(cacheErr))
		}
	}
	if s.notifier != nil {
		if notifyErr := s.notifier.NotifyStatus(ctx, applicant, course, false); notifyErr != nil {
			s.logger.Warn("signup confirmation not queued", zap.String("applicant_id", applicant.ID), zap.Error(notifyErr))
			warnings = append(warnings, "confirmation mail could not be sent")
		}
	}

	s.logger.Info("applicant signed up",
		zap.String("applicant_id", applicant.ID),
		zap.String("course_id", course.ID),
		zap.Bool("waiting", waiting),
		zap.Bool("preterm", preterm),
	)
	return &dto.SignupResponse{
		ApplicantID: applicant.ID,
		CourseID:    course.ID,
		Course:      course.FullName(),
		Waiting:     waiting,
		Discount:    att.Discount,
		Preterm:     preterm,
	}, warnings, nil
}

func (s *SignupService) loadOrInitApplicant(ctx context.Context, tx sqlx.ExtContext, req dto.SignupRequest) (*models.Applicant, bool, error) {
	applicant, err := s.applicants.FindByMail(ctx, tx, req.Mail)
	isNew := false
	switch {
	case errors.Is(err, sql.ErrNoRows):
		applicant, isNew = &models.Applicant{Mail: strings.TrimSpace(req.Mail)}, true
	case err != nil:
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	default:
		if err := s.applicants.LoadAttendances(ctx, tx, applicant); err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendances")
		}
	}
	applicant.FirstName = strings.TrimSpace(req.FirstName)
	applicant.LastName = strings.TrimSpace(req.LastName)
	applicant.Tag = strings.TrimSpace(req.Tag)
	applicant.Origin = strings.TrimSpace(req.Origin)
	applicant.IsStudent = req.IsStudent
	return applicant, isNew, nil
}
