package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/internal/models"
	"github.com/noah-isme/langcenter-api/pkg/mail"
)

type txMock struct {
	db *sqlx.DB
}

func newTxMock(t *testing.T) (*txMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &txMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (m *txMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return m.db.BeginTxx(ctx, opts)
}

// graphFixture builds an in-memory language/course/applicant graph. By default now lies in
// the first-come-first-served window of the language.
type graphFixture struct {
	now        time.Time
	language   *models.Language
	courses    map[string]*models.Course
	applicants map[string]*models.Applicant
	all        []*models.Attendance
}

func newGraphFixture() *graphFixture {
	now := time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC)
	return &graphFixture{
		now: now,
		language: &models.Language{
			ID:                 "lang-en",
			Name:               "English",
			SignupBegin:        now.Add(-10 * 24 * time.Hour),
			SignupRndWindowEnd: now.Add(-7 * 24 * time.Hour),
			SignupManualEnd:    now.Add(-5 * 24 * time.Hour),
			SignupFCFSBegin:    now.Add(-5 * 24 * time.Hour),
			SignupEnd:          now.Add(10 * 24 * time.Hour),
		},
		courses:    make(map[string]*models.Course),
		applicants: make(map[string]*models.Applicant),
	}
}

func (f *graphFixture) course(id, level, alternative string, limit int) *models.Course {
	c := &models.Course{
		ID:          id,
		LanguageID:  f.language.ID,
		Level:       level,
		Alternative: alternative,
		Limit:       limit,
		Price:       100,
		Language:    f.language,
	}
	f.courses[id] = c
	return c
}

func (f *graphFixture) applicant(id string, student bool) *models.Applicant {
	a := &models.Applicant{
		ID:        id,
		Mail:      id + "@example.org",
		FirstName: "First",
		LastName:  id,
		IsStudent: student,
	}
	f.applicants[id] = a
	return a
}

func (f *graphFixture) attend(applicantID, courseID string, registered time.Time, waiting bool) *models.Attendance {
	applicant := f.applicants[applicantID]
	course := f.courses[courseID]
	att := &models.Attendance{
		ApplicantID: applicantID,
		CourseID:    courseID,
		Waiting:     waiting,
		Registered:  registered,
		Applicant:   applicant,
		Course:      course,
	}
	applicant.Attendances = append(applicant.Attendances, att)
	if waiting {
		course.WaitingCount++
	} else {
		course.ActiveCount++
	}
	f.all = append(f.all, att)
	return att
}

// inFCFS returns a registration time inside the first-come-first-served window.
func (f *graphFixture) inFCFS(offset time.Duration) time.Time {
	return f.language.SignupFCFSBegin.Add(time.Hour + offset)
}

// inRandom returns a registration time inside the lottery window.
func (f *graphFixture) inRandom(offset time.Duration) time.Time {
	return f.language.SignupBegin.Add(time.Hour + offset)
}

type attendanceStoreStub struct {
	mu        sync.Mutex
	fixture   *graphFixture
	loadErr   error
	updateErr error
	deleteErr error
	updated   []models.Attendance
	deleted   []string
}

func (s *attendanceStoreStub) LoadWaitingGraph(ctx context.Context, exec sqlx.ExtContext) ([]*models.Attendance, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var waiting []*models.Attendance
	for _, att := range s.fixture.all {
		if att.Waiting {
			waiting = append(waiting, att)
		}
	}
	return waiting, nil
}

func (s *attendanceStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, *attendance)
	return nil
}

func (s *attendanceStoreStub) Delete(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, applicantID+"/"+courseID)
	return nil
}

type courseStoreStub struct {
	fixture *graphFixture
	order   []string
	flags   map[string]bool
}

func (s *courseStoreStub) List(ctx context.Context, exec sqlx.ExtContext, filter models.CourseFilter) ([]models.Course, error) {
	courses := make([]models.Course, 0, len(s.order))
	for _, id := range s.order {
		courses = append(courses, *s.fixture.courses[id])
	}
	return courses, nil
}

func (s *courseStoreStub) SetWaitingList(ctx context.Context, exec sqlx.ExtContext, id string, hasWaitingList bool) error {
	if s.flags == nil {
		s.flags = make(map[string]bool)
	}
	s.flags[id] = hasWaitingList
	s.fixture.courses[id].HasWaitingList = hasWaitingList
	return nil
}

type logWriterStub struct {
	mu      sync.Mutex
	err     error
	entries []models.LogEntry
}

func (s *logWriterStub) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.LogEntry) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

type statusCall struct {
	ApplicantID string
	CourseID    string
	Waiting     bool
	Restock     bool
}

type notifierStub struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []statusCall
}

func (n *notifierStub) NotifyStatus(ctx context.Context, applicant *models.Applicant, course *models.Course, restock bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	att := applicant.Attendance(course.ID)
	n.calls = append(n.calls, statusCall{ApplicantID: applicant.ID, CourseID: course.ID, Waiting: att.Waiting, Restock: restock})
	if err, ok := n.errs[applicant.ID]; ok {
		return err
	}
	return nil
}

func (n *notifierStub) callsFor(applicantID string) []statusCall {
	var out []statusCall
	for _, c := range n.calls {
		if c.ApplicantID == applicantID {
			out = append(out, c)
		}
	}
	return out
}

type cacheStub struct {
	patterns []string
}

func (c *cacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

type courseLockerStub struct {
	fixture *graphFixture
	lockErr error
	locked  []string
}

func (s *courseLockerStub) Lock(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if s.lockErr != nil {
		return s.lockErr
	}
	if _, ok := s.fixture.courses[id]; !ok {
		return sql.ErrNoRows
	}
	s.locked = append(s.locked, id)
	return nil
}

func (s *courseLockerStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	course, ok := s.fixture.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

type languageReaderStub struct {
	fixture *graphFixture
}

func (s *languageReaderStub) FindByID(ctx context.Context, id string) (*models.Language, error) {
	if s.fixture.language.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.fixture.language, nil
}

type applicantStoreStub struct {
	fixture *graphFixture
	created []*models.Applicant
	updated []*models.Applicant
}

func (s *applicantStoreStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Applicant, error) {
	applicant, ok := s.fixture.applicants[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return applicant, nil
}

func (s *applicantStoreStub) FindByMail(ctx context.Context, exec sqlx.ExtContext, mail string) (*models.Applicant, error) {
	for _, applicant := range s.fixture.applicants {
		if strings.EqualFold(applicant.Mail, mail) {
			return applicant, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *applicantStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	applicant.ID = "new-applicant"
	s.created = append(s.created, applicant)
	return nil
}

func (s *applicantStoreStub) Update(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	s.updated = append(s.updated, applicant)
	return nil
}

// LoadAttendances is a no-op; fixture applicants already carry their attendances.
func (s *applicantStoreStub) LoadAttendances(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	return nil
}

type attendanceWriterStub struct {
	created   []models.Attendance
	updated   []models.Attendance
	deleted   []string
	createErr error
}

func (s *attendanceWriterStub) Create(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *attendance)
	return nil
}

func (s *attendanceWriterStub) Update(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	s.updated = append(s.updated, *attendance)
	return nil
}

func (s *attendanceWriterStub) Delete(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) error {
	s.deleted = append(s.deleted, applicantID+"/"+courseID)
	return nil
}

type pretermValidatorStub struct {
	mail string
	err  error
}

func (s pretermValidatorStub) Validate(token string) (string, error) {
	return s.mail, s.err
}

type signoffNotifierStub struct {
	calls []string
	err   error
}

func (s *signoffNotifierStub) NotifySignoff(ctx context.Context, applicant *models.Applicant, course *models.Course) error {
	s.calls = append(s.calls, applicant.ID+"/"+course.ID)
	return s.err
}

func adminActor() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

// gatedSender holds every delivery until open is called.
type gatedSender struct {
	gate chan struct{}
	once sync.Once
	mu   sync.Mutex
	sent []mail.Message
}

func newGatedSender() *gatedSender {
	return &gatedSender{gate: make(chan struct{})}
}

func (s *gatedSender) open() {
	s.once.Do(func() { close(s.gate) })
}

func (s *gatedSender) Send(ctx context.Context, msg mail.Message) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *gatedSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}
