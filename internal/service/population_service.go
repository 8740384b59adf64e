package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/langcenter-api/internal/models"
	appErrors "github.com/noah-isme/langcenter-api/pkg/errors"
	"github.com/noah-isme/langcenter-api/pkg/mail"
)

var (
	// ErrPopulationInvariant marks a structurally inconsistent waiting graph. The run is rolled back.
	ErrPopulationInvariant = errors.New("population invariant violated")
	// ErrNotificationFailed wraps non-transient notification failures reported after commit.
	ErrNotificationFailed = errors.New("notification failed")
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type populationAttendanceStore interface {
	LoadWaitingGraph(ctx context.Context, exec sqlx.ExtContext) ([]*models.Attendance, error)
	Update(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error
	Delete(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) error
}

type populationCourseStore interface {
	List(ctx context.Context, exec sqlx.ExtContext, filter models.CourseFilter) ([]models.Course, error)
	SetWaitingList(ctx context.Context, exec sqlx.ExtContext, id string, hasWaitingList bool) error
}

type courseLogWriter interface {
	Append(ctx context.Context, exec sqlx.ExtContext, entry *models.LogEntry) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// StatusNotifier queues the status mail for an applicant's attendance of course.
// Implementations must not wait for delivery.
type StatusNotifier interface {
	NotifyStatus(ctx context.Context, applicant *models.Applicant, course *models.Course, restock bool) error
}

// PopulationResult summarises one committed run.
type PopulationResult struct {
	Strategy             string    `json:"strategy"`
	RanAt                time.Time `json:"ran_at"`
	Candidates           int       `json:"candidates"`
	Accepted             int       `json:"accepted"`
	Rejected             int       `json:"rejected"`
	ParallelFlagged      int       `json:"parallel_flagged"`
	Skipped              int       `json:"skipped"`
	Notified             int       `json:"notified"`
	NotificationFailures int       `json:"notification_failures"`
	// Unsent lists committed decisions whose mail was not queued. Resend them with a status
	// update that asks for notification.
	Unsent []UnsentNotification `json:"unsent,omitempty"`
}

// UnsentNotification identifies a status mail that could not be queued.
type UnsentNotification struct {
	ApplicantID string `json:"applicant_id"`
	CourseID    string `json:"course_id"`
	Restock     bool   `json:"restock"`
	Reason      string `json:"reason"`
}

const defaultDispatchTimeout = 2 * time.Minute

// GlobalPopulationResult is the outcome of PopulateGlobal.
type GlobalPopulationResult struct {
	Random              *PopulationResult `json:"random"`
	FCFS                *PopulationResult `json:"fcfs"`
	WaitingListsChanged int               `json:"waiting_lists_changed"`
}

type handledAttendance struct {
	attendance *models.Attendance
	restock    bool
}

// PopulationService assigns free seats to waiting applicants.
type PopulationService struct {
	tx          txProvider
	attendances populationAttendanceStore
	courses     populationCourseStore
	logs        courseLogWriter
	notifier    StatusNotifier
	cache       cacheInvalidator
	metrics     *MetricsService
	logger      *zap.Logger
	rng         *rand.Rand
	mu          sync.Mutex

	dispatchTimeout time.Duration
}

// NewPopulationService constructs a PopulationService.
func NewPopulationService(tx txProvider, attendances populationAttendanceStore, courses populationCourseStore, logs courseLogWriter, notifier StatusNotifier, cache cacheInvalidator, metrics *MetricsService, logger *zap.Logger) *PopulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PopulationService{
		tx:          tx,
		attendances: attendances,
		courses:     courses,
		logs:        logs,
		notifier:    notifier,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),

		dispatchTimeout: defaultDispatchTimeout,
	}
}

// WithRand replaces the lottery source.
func (s *PopulationService) WithRand(rng *rand.Rand) *PopulationService {
	s.rng = rng
	return s
}

// WithDispatchTimeout bounds how long a committed run waits for mail queue space.
func (s *PopulationService) WithDispatchTimeout(d time.Duration) *PopulationService {
	if d > 0 {
		s.dispatchTimeout = d
	}
	return s
}

// PopulateRandom runs the lottery over registrations of the random window.
func (s *PopulationService) PopulateRandom(ctx context.Context, now time.Time) (*PopulationResult, error) {
	return s.Populate(ctx, NewRandomStrategy(s.rng), now)
}

// PopulateFCFS serves the remaining waiting registrations by registration time.
func (s *PopulationService) PopulateFCFS(ctx context.Context, now time.Time) (*PopulationResult, error) {
	return s.Populate(ctx, FCFSStrategy{}, now)
}

// PopulateGlobal runs the lottery, then first-come-first-served, then recomputes waiting-list flags.
// Overlapping calls on the same instance fail with ErrPopulationRunning; callers serialise runs
// across instances.
func (s *PopulationService) PopulateGlobal(ctx context.Context, now time.Time) (*GlobalPopulationResult, error) {
	if !s.mu.TryLock() {
		return nil, appErrors.ErrPopulationRunning
	}
	defer s.mu.Unlock()

	var notifyErrs []error
	result := &GlobalPopulationResult{}

	rnd, err := s.PopulateRandom(ctx, now)
	if rnd == nil {
		return nil, err
	}
	result.Random = rnd
	if err != nil {
		notifyErrs = append(notifyErrs, err)
	}

	fcfs, err := s.PopulateFCFS(ctx, now)
	if fcfs == nil {
		return result, err
	}
	result.FCFS = fcfs
	if err != nil {
		notifyErrs = append(notifyErrs, err)
	}

	changed, err := s.UpdateWaitingListStatus(ctx, now)
	if err != nil {
		return result, err
	}
	result.WaitingListsChanged = changed

	return result, errors.Join(notifyErrs...)
}

// Populate performs one assign-or-reject run with strategy.
//
// All mutations are committed in a single transaction. Notifications are sent only after the
// commit succeeded; the returned error is then non-nil only for non-transient notification
// failures and the result is still valid.
func (s *PopulationService) Populate(ctx context.Context, strategy SelectionStrategy, now time.Time) (*PopulationResult, error) {
	start := time.Now()
	result, handled, err := s.run(ctx, strategy, now)
	if err != nil {
		s.metrics.ObservePopulationRun(strategy.Name(), "failed", time.Since(start))
		s.logger.Error("population run rolled back", zap.String("strategy", strategy.Name()), zap.Error(err))
		return nil, err
	}
	s.metrics.ObservePopulationRun(strategy.Name(), "committed", time.Since(start))
	s.metrics.RecordPopulationDecisions(strategy.Name(), result.Accepted, result.Rejected)

	if len(handled) > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, VacancyCachePattern); err != nil {
			s.logger.Warn("failed to invalidate vacancy cache", zap.Error(err))
		}
	}

	notifyErr := s.dispatch(ctx, handled, result)
	s.logger.Info("population run committed",
		zap.String("strategy", result.Strategy),
		zap.Int("candidates", result.Candidates),
		zap.Int("accepted", result.Accepted),
		zap.Int("rejected", result.Rejected),
		zap.Int("notification_failures", result.NotificationFailures),
	)
	return result, notifyErr
}

func (s *PopulationService) run(ctx context.Context, strategy SelectionStrategy, now time.Time) (result *PopulationResult, handled []handledAttendance, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin population transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	waiting, err := s.attendances.LoadWaitingGraph(ctx, tx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waiting attendances")
	}
	if err = checkWaitingGraph(waiting); err != nil {
		return nil, nil, err
	}

	result = &PopulationResult{Strategy: strategy.Name(), RanAt: now}
	candidates := FilterCandidates(waiting, now, strategy.Eligible)
	result.Candidates = len(candidates)
	strategy.Prepare(candidates)

	var (
		dirty    []*models.Attendance
		entries  []*models.LogEntry
		accepted = make(map[string]struct{})
	)
	markDirty := func(att *models.Attendance) {
		for _, seen := range dirty {
			if seen == att {
				return
			}
		}
		dirty = append(dirty, att)
	}

	for len(candidates) > 0 {
		idx := strategy.Select(candidates)
		if idx < 0 || idx >= len(candidates) {
			err = invariantError("strategy %s selected index %d of %d", strategy.Name(), idx, len(candidates))
			return nil, nil, err
		}
		att := candidates[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)

		if att.Course.Language.IsInManualMode(now) {
			err = invariantError("course %s is in manual mode", att.CourseID)
			return nil, nil, err
		}
		if !att.Waiting {
			err = invariantError("attendance %s/%s is not waiting", att.ApplicantID, att.CourseID)
			return nil, nil, err
		}

		applicant := att.Applicant
		if _, ok := accepted[applicant.ID]; ok {
			result.Skipped++
			continue
		}

		// No mail on this path; the applicant already holds a seat in an alternative.
		if applicant.ActiveInParallelCourse(att.Course) {
			if !att.InformedAboutRejection {
				att.InformedAboutRejection = true
				markDirty(att)
			}
			result.ParallelFlagged++
			continue
		}

		if att.Course.IsFull() {
			if !att.InformedAboutRejection {
				handled = append(handled, handledAttendance{attendance: att})
				att.InformedAboutRejection = true
				markDirty(att)
				result.Rejected++
			}
			continue
		}

		informedBefore := att.InformedAboutRejection
		att.Discount = applicant.CurrentDiscount()
		att.SetWaitingStatus(false)
		handled = append(handled, handledAttendance{attendance: att, restock: informedBefore})
		att.InformedAboutRejection = true
		accepted[applicant.ID] = struct{}{}
		markDirty(att)
		entries = append(entries, bookedLogEntry(att, now))
		result.Accepted++
	}

	for _, att := range dirty {
		if err = s.attendances.Update(ctx, tx, att); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attendance")
		}
	}
	for _, entry := range entries {
		if err = s.logs.Append(ctx, tx, entry); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit population run")
	}
	return result, handled, nil
}

// dispatch sends one notification per handled attendance. A failing message never stops the rest.
// The decisions are already committed, so a cancelled caller does not stop the dispatch; only
// the dispatch timeout does.
func (s *PopulationService) dispatch(ctx context.Context, handled []handledAttendance, result *PopulationResult) error {
	if s.notifier == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	var fatal []error
	for _, h := range handled {
		att := h.attendance
		err := s.notifier.NotifyStatus(ctx, att.Applicant, att.Course, h.restock)
		if err == nil {
			result.Notified++
			continue
		}
		result.Unsent = append(result.Unsent, UnsentNotification{
			ApplicantID: att.ApplicantID,
			CourseID:    att.CourseID,
			Restock:     h.restock,
			Reason:      err.Error(),
		})
		switch {
		case mail.IsTransient(err):
			result.NotificationFailures++
			s.metrics.RecordNotification("status", "transient_failure")
			s.logger.Warn("status notification not queued",
				zap.String("applicant_id", att.ApplicantID),
				zap.String("course_id", att.CourseID),
				zap.Error(err),
			)
		default:
			result.NotificationFailures++
			s.metrics.RecordNotification("status", "failed")
			s.logger.Error("status notification failed",
				zap.String("applicant_id", att.ApplicantID),
				zap.String("course_id", att.CourseID),
				zap.Error(err),
			)
			fatal = append(fatal, fmt.Errorf("notify %s about %s: %w", att.ApplicantID, att.CourseID, err))
		}
	}
	if len(fatal) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNotificationFailed, errors.Join(fatal...))
}

// UpdateWaitingListStatus sets has_waiting_list to is_full for every course in its own transaction.
// It returns the number of flipped flags.
func (s *PopulationService) UpdateWaitingListStatus(ctx context.Context, now time.Time) (changed int, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin waiting list transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	courses, err := s.courses.List(ctx, tx, models.CourseFilter{})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	for i := range courses {
		course := &courses[i]
		full := course.IsFull()
		if course.HasWaitingList == full {
			continue
		}
		if err = s.courses.SetWaitingList(ctx, tx, course.ID, full); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update waiting list flag")
		}
		course.HasWaitingList = full
		if err = s.logs.Append(ctx, tx, waitingListLogEntry(course, now)); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
		}
		changed++
	}
	if err = tx.Commit(); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit waiting list status")
	}
	if changed > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, VacancyCachePattern); err != nil {
			s.logger.Warn("failed to invalidate vacancy cache", zap.Error(err))
		}
	}
	return changed, nil
}

// ParallelCleanupResult lists the waiting registrations removed by RemoveParallelWaiting.
type ParallelCleanupResult struct {
	RanAt   time.Time           `json:"ran_at"`
	Removed []models.Attendance `json:"removed"`
}

// RemoveParallelWaiting deletes waiting registrations of applicants who already hold a seat in a
// parallel course. Only registrations for courseIDs are considered; an empty list means all courses.
// No mails are sent.
func (s *PopulationService) RemoveParallelWaiting(ctx context.Context, courseIDs []string, now time.Time) (result *ParallelCleanupResult, err error) {
	if !s.mu.TryLock() {
		return nil, appErrors.ErrPopulationRunning
	}
	defer s.mu.Unlock()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin cleanup transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	waiting, err := s.attendances.LoadWaitingGraph(ctx, tx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waiting attendances")
	}
	if err = checkWaitingGraph(waiting); err != nil {
		return nil, err
	}

	selected := make(map[string]struct{}, len(courseIDs))
	for _, id := range courseIDs {
		selected[id] = struct{}{}
	}
	result = &ParallelCleanupResult{RanAt: now, Removed: []models.Attendance{}}
	for _, att := range waiting {
		if _, ok := selected[att.CourseID]; len(selected) > 0 && !ok {
			continue
		}
		if !att.Applicant.ActiveInParallelCourse(att.Course) {
			continue
		}
		if err = s.attendances.Delete(ctx, tx, att.ApplicantID, att.CourseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
		}
		if err = s.logs.Append(ctx, tx, parallelRemovedLogEntry(att, now)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write course log")
		}
		result.Removed = append(result.Removed, *att)
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit cleanup")
	}
	s.logger.Info("parallel waiting registrations removed", zap.Int("removed", len(result.Removed)))
	return result, nil
}

func checkWaitingGraph(waiting []*models.Attendance) error {
	for _, att := range waiting {
		switch {
		case att.Applicant == nil:
			return invariantError("attendance %s/%s has no applicant", att.ApplicantID, att.CourseID)
		case att.Course == nil:
			return invariantError("attendance %s/%s has no course", att.ApplicantID, att.CourseID)
		case att.Course.Language == nil:
			return invariantError("course %s has no language", att.CourseID)
		}
	}
	return nil
}

func invariantError(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrPopulationInvariant, fmt.Sprintf(format, args...))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "population aborted")
}

func bookedLogEntry(att *models.Attendance, now time.Time) *models.LogEntry {
	courseID := att.CourseID
	return &models.LogEntry{
		Timestamp: now,
		Message:   fmt.Sprintf("%s (%s) was booked into %s.", att.Applicant.FullName(), att.Applicant.Mail, att.Course.FullName()),
		CourseID:  &courseID,
	}
}

func parallelRemovedLogEntry(att *models.Attendance, now time.Time) *models.LogEntry {
	courseID := att.CourseID
	return &models.LogEntry{
		Timestamp: now,
		Message:   fmt.Sprintf("%s (%s) was removed from the waiting list of %s, holding a parallel seat.", att.Applicant.FullName(), att.Applicant.Mail, att.Course.FullName()),
		CourseID:  &courseID,
	}
}

func waitingListLogEntry(course *models.Course, now time.Time) *models.LogEntry {
	courseID := course.ID
	msg := fmt.Sprintf("%s is now free of a waiting list.", course.FullName())
	if course.HasWaitingList {
		msg = fmt.Sprintf("%s now has a waiting list.", course.FullName())
	}
	return &models.LogEntry{Timestamp: now, Message: msg, CourseID: &courseID}
}
