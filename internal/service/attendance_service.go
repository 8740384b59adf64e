package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/dto"
	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
)

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error)
}

type signoffNotifier interface {
	NotifySignoff(ctx context.Context, applicant *models.Applicant, course *models.Course) error
}

// AttendanceService implements manual attendance management.
type AttendanceService struct {
	tx          txProvider
	courses     courseLocker
	applicants  applicantStore
	attendances attendanceWriter
	lister      attendanceLister
	logs        courseLogWriter
	notifier    StatusNotifier
	signoffs    signoffNotifier
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(tx txProvider, courses courseLocker, applicants applicantStore, attendances attendanceWriter, lister attendanceLister, logs courseLogWriter, notifier StatusNotifier, signoffs signoffNotifier, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		tx:          tx,
		courses:     courses,
		applicants:  applicants,
		attendances: attendances,
		lister:      lister,
		logs:        logs,
		notifier:    notifier,
		signoffs:    signoffs,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// ListByCourse returns a course's attendances, optionally filtered by waiting state.
func (s *AttendanceService) ListByCourse(ctx context.Context, courseID string, waiting *bool) ([]models.AttendanceDetail, error) {
	details, err := s.lister.List(ctx, models.AttendanceFilter{CourseID: courseID, Waiting: waiting})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}
	return details, nil
}

// Add books an applicant into a course without going through the waiting list.
func (s *AttendanceService) Add(ctx context.Context, req dto.AddAttendanceRequest) (att *models.Attendance, warnings []string, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	now := s.now().UTC()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
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
	applicant, err := s.loadApplicant(ctx, req.ApplicantID)
	if err != nil {
		return nil, nil, err
	}
	if applicant.InCourse(course) || applicant.ActiveInParallelCourse(course) {
		err = appErrors.Clone(appErrors.ErrConflict, "applicant already attends this course or a parallel course")
		return nil, nil, err
	}

	att = &models.Attendance{
		ApplicantID: applicant.ID,
		CourseID:    course.ID,
		Waiting:     false,
		Registered:  now,
		Discount:    applicant.CurrentDiscount(),
		Applicant:   applicant,
		Course:      course,
	}
	if err = s.attendances.Create(ctx, tx, att); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance")
	}
	if err = s.logs.Append(ctx, tx, bookedLogEntry(att, now)); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit attendance")
	}
	applicant.Attendances = append(applicant.Attendances, att)
	course.ActiveCount++
	if course.ActiveCount > course.Limit {
		warnings = append(warnings, "course is now booked beyond its seat limit")
	}
	s.afterMutation(ctx)

	if req.Notify && s.notifier != nil {
		if notifyErr := s.notifier.NotifyStatus(ctx, applicant, course, true); notifyErr != nil {
			s.logger.Warn("attendance confirmation not queued", zap.String("applicant_id", applicant.ID), zap.Error(notifyErr))
			warnings = append(warnings, "confirmation mail could not be sent")
		}
	}
	return att, warnings, nil
}

// Remove deletes an attendance. A student who loses the free course gets the discount
// transferred to the first remaining active attendance.
func (s *AttendanceService) Remove(ctx context.Context, applicantID, courseID string, notify bool) (warnings []string, err error) {
	applicant, err := s.loadApplicant(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	att := applicant.Attendance(courseID)
	if att == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.attendances.Delete(ctx, tx, applicantID, courseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	remaining := applicant.Attendances[:0]
	for _, other := range applicant.Attendances {
		if other != att {
			remaining = append(remaining, other)
		}
	}
	applicant.Attendances = remaining

	if transfer := freeCourseTransfer(applicant); transfer != nil {
		transfer.Discount = models.MaxDiscount
		if err = s.attendances.Update(ctx, tx, transfer); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transfer free course")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit removal")
	}
	s.afterMutation(ctx)

	if notify && s.signoffs != nil && att.Course != nil {
		if notifyErr := s.signoffs.NotifySignoff(ctx, applicant, att.Course); notifyErr != nil {
			s.logger.Warn("signoff confirmation not queued", zap.String("applicant_id", applicant.ID), zap.Error(notifyErr))
			warnings = append(warnings, "confirmation mail could not be sent")
		}
	}
	return warnings, nil
}

// UpdateStatus edits waiting state, discount and payment data of an attendance.
func (s *AttendanceService) UpdateStatus(ctx context.Context, applicantID, courseID string, req dto.UpdateAttendanceStatusRequest) (att *models.Attendance, warnings []string, err error) {
	if err = s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance status payload")
	}
	applicant, err := s.loadApplicant(ctx, applicantID)
	if err != nil {
		return nil, nil, err
	}
	att = applicant.Attendance(courseID)
	if att == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
	}
	now := s.now().UTC()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	booked := false
	if req.Waiting != nil && att.SetWaitingStatus(*req.Waiting) {
		booked = !att.Waiting
	}
	if req.Discount != nil {
		att.Discount = *req.Discount
	}
	if req.AmountPaid != nil {
		att.AmountPaid = *req.AmountPaid
		if att.AmountPaid > 0 && att.PayingDate == nil {
			att.PayingDate = &now
		}
	}
	if req.PaidByCash != nil {
		att.PaidByCash = *req.PaidByCash
	}
	if err = s.attendances.Update(ctx, tx, att); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	if booked && att.Course != nil {
		if err = s.logs.Append(ctx, tx, bookedLogEntry(att, now)); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit attendance")
	}
	s.afterMutation(ctx)

	if req.Notify && s.notifier != nil && att.Course != nil {
		if notifyErr := s.notifier.NotifyStatus(ctx, applicant, att.Course, false); notifyErr != nil {
			s.logger.Warn("status mail not queued", zap.String("applicant_id", applicant.ID), zap.Error(notifyErr))
			warnings = append(warnings, "status mail could not be sent")
		}
	}
	return att, warnings, nil
}

func (s *AttendanceService) loadApplicant(ctx context.Context, id string) (*models.Applicant, error) {
	applicant, err := s.applicants.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := s.applicants.LoadAttendances(ctx, nil, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendances")
	}
	return applicant, nil
}

func (s *AttendanceService) afterMutation(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, VacancyCachePattern); err != nil {
		s.logger.Warn("failed to invalidate vacancy cache", zap.Error(err))
	}
}

// freeCourseTransfer returns the attendance that should become free after a removal, if any.
func freeCourseTransfer(applicant *models.Applicant) *models.Attendance {
	if !applicant.IsStudent {
		return nil
	}
	active := applicant.ActiveAttendances()
	if len(active) == 0 {
		return nil
	}
	for _, att := range active {
		if att.Discount >= models.MaxDiscount {
			return nil
		}
	}
	return active[0]
}
