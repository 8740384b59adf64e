package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/langcenter-api/internal/models"
)

const attendanceColumns = `applicant_id, course_id, waiting, registered, discount, informed_about_rejection, amount_paid, paid_by_cash, paying_date`

// AttendanceRepository persists attendances.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Find fetches a single attendance.
func (r *AttendanceRepository) Find(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) (*models.Attendance, error) {
	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE applicant_id = $1 AND course_id = $2`
	var attendance models.Attendance
	if err := sqlx.GetContext(ctx, executor(exec, r.db), &attendance, query, applicantID, courseID); err != nil {
		return nil, err
	}
	return &attendance, nil
}

// List returns attendances joined with applicant and course names.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.ApplicantID != "" {
		conditions = append(conditions, fmt.Sprintf("a.applicant_id = $%d", len(args)+1))
		args = append(args, filter.ApplicantID)
	}
	if filter.Waiting != nil {
		conditions = append(conditions, fmt.Sprintf("a.waiting = $%d", len(args)+1))
		args = append(args, *filter.Waiting)
	}
	query := fmt.Sprintf(`SELECT a.applicant_id, a.course_id, a.waiting, a.registered, a.discount, a.informed_about_rejection, a.amount_paid, a.paid_by_cash, a.paying_date,
        ap.first_name, ap.last_name, ap.mail, ap.tag,
        CONCAT_WS(' ', l.name, c.level, c.alternative) AS course_name
        FROM attendances a
        JOIN applicants ap ON ap.id = a.applicant_id
        JOIN courses c ON c.id = a.course_id
        JOIN languages l ON l.id = c.language_id
        WHERE %s ORDER BY a.waiting ASC, ap.last_name ASC, ap.first_name ASC`, strings.Join(conditions, " AND "))

	var details []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list attendances: %w", err)
	}
	return details, nil
}

// Create inserts a new attendance.
func (r *AttendanceRepository) Create(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	const query = `INSERT INTO attendances (applicant_id, course_id, waiting, registered, discount, informed_about_rejection, amount_paid, paid_by_cash, paying_date)
        VALUES (:applicant_id, :course_id, :waiting, :registered, :discount, :informed_about_rejection, :amount_paid, :paid_by_cash, :paying_date)`
	if _, err := sqlx.NamedExecContext(ctx, executor(exec, r.db), query, attendance); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// Update persists the mutable state of an attendance. Registration time is immutable.
func (r *AttendanceRepository) Update(ctx context.Context, exec sqlx.ExtContext, attendance *models.Attendance) error {
	const query = `UPDATE attendances SET waiting = :waiting, discount = :discount, informed_about_rejection = :informed_about_rejection,
        amount_paid = :amount_paid, paid_by_cash = :paid_by_cash, paying_date = :paying_date
        WHERE applicant_id = :applicant_id AND course_id = :course_id`
	if _, err := sqlx.NamedExecContext(ctx, executor(exec, r.db), query, attendance); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes an attendance.
func (r *AttendanceRepository) Delete(ctx context.Context, exec sqlx.ExtContext, applicantID, courseID string) error {
	const query = `DELETE FROM attendances WHERE applicant_id = $1 AND course_id = $2`
	if _, err := executor(exec, r.db).ExecContext(ctx, query, applicantID, courseID); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// PaymentStatistics aggregates amounts paid by active, charged attendances per payment method.
func (r *AttendanceRepository) PaymentStatistics(ctx context.Context) ([]models.PaymentStatistics, error) {
	const query = `SELECT paid_by_cash, COUNT(*) AS count,
        COALESCE(SUM(amount_paid), 0) AS total, COALESCE(AVG(amount_paid), 0) AS average,
        COALESCE(MIN(amount_paid), 0) AS minimum, COALESCE(MAX(amount_paid), 0) AS maximum
        FROM attendances
        WHERE waiting = false AND discount < $1
        GROUP BY paid_by_cash ORDER BY paid_by_cash ASC`
	stats := []models.PaymentStatistics{}
	if err := r.db.SelectContext(ctx, &stats, query, models.MaxDiscount); err != nil {
		return nil, fmt.Errorf("payment statistics: %w", err)
	}
	return stats, nil
}

// Outstanding lists active attendances whose payment is below the discounted course price.
func (r *AttendanceRepository) Outstanding(ctx context.Context) ([]models.OutstandingAttendance, error) {
	const query = `SELECT a.applicant_id, a.course_id, a.waiting, a.registered, a.discount, a.informed_about_rejection, a.amount_paid, a.paid_by_cash, a.paying_date,
        ap.first_name, ap.last_name, ap.mail, ap.tag,
        CONCAT_WS(' ', l.name, c.level, c.alternative) AS course_name,
        c.price, c.price * (1 - a.discount) - a.amount_paid AS amount_due
        FROM attendances a
        JOIN applicants ap ON ap.id = a.applicant_id
        JOIN courses c ON c.id = a.course_id
        JOIN languages l ON l.id = c.language_id
        WHERE a.waiting = false AND a.amount_paid < c.price * (1 - a.discount)
        ORDER BY course_name ASC, ap.last_name ASC, ap.first_name ASC`
	outstanding := []models.OutstandingAttendance{}
	if err := r.db.SelectContext(ctx, &outstanding, query); err != nil {
		return nil, fmt.Errorf("list outstanding payments: %w", err)
	}
	return outstanding, nil
}

// LoadWaitingGraph loads every waiting attendance ordered by registration time.
// Each one carries its applicant, whose attendances in turn carry their courses
// and languages, so population never needs another query.
func (r *AttendanceRepository) LoadWaitingGraph(ctx context.Context, exec sqlx.ExtContext) ([]*models.Attendance, error) {
	target := executor(exec, r.db)
	const waitingApplicants = `SELECT applicant_id FROM attendances WHERE waiting = true`

	languages, err := listLanguages(ctx, target)
	if err != nil {
		return nil, err
	}
	courses, err := listCourses(ctx, target, "")
	if err != nil {
		return nil, err
	}

	var applicants []*models.Applicant
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id IN (` + waitingApplicants + `)`
	if err := sqlx.SelectContext(ctx, target, &applicants, query); err != nil {
		return nil, fmt.Errorf("load waiting applicants: %w", err)
	}

	var attendances []models.Attendance
	query = `SELECT ` + attendanceColumns + ` FROM attendances WHERE applicant_id IN (` + waitingApplicants + `)
        ORDER BY registered ASC, applicant_id ASC, course_id ASC`
	if err := sqlx.SelectContext(ctx, target, &attendances, query); err != nil {
		return nil, fmt.Errorf("load waiting attendances: %w", err)
	}

	linked := linkGraph(languages, courses, applicants, attendances)
	waiting := make([]*models.Attendance, 0, len(linked))
	for _, att := range linked {
		if att.Waiting {
			waiting = append(waiting, att)
		}
	}
	return waiting, nil
}

// linkGraph wires attendances to shared applicant and course pointers and returns
// them in input order. References to unknown rows stay nil.
func linkGraph(languages []models.Language, courses []models.Course, applicants []*models.Applicant, attendances []models.Attendance) []*models.Attendance {
	languageByID := make(map[string]*models.Language, len(languages))
	for i := range languages {
		languageByID[languages[i].ID] = &languages[i]
	}
	courseByID := make(map[string]*models.Course, len(courses))
	for i := range courses {
		course := &courses[i]
		course.Language = languageByID[course.LanguageID]
		courseByID[course.ID] = course
	}
	applicantByID := make(map[string]*models.Applicant, len(applicants))
	for _, applicant := range applicants {
		applicantByID[applicant.ID] = applicant
	}

	linked := make([]*models.Attendance, 0, len(attendances))
	for i := range attendances {
		att := &attendances[i]
		att.Course = courseByID[att.CourseID]
		if applicant, ok := applicantByID[att.ApplicantID]; ok {
			att.Applicant = applicant
			applicant.Attendances = append(applicant.Attendances, att)
		}
		linked = append(linked, att)
	}
	return linked
}
