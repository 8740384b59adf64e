package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/langcenter-api/internal/models"
)

const courseSelect = `SELECT c.id, c.language_id, c.level, c.alternative, c.seat_limit, c.price, c.has_waiting_list, c.created_at, c.updated_at,
        l.name AS language_name,
        COUNT(a.applicant_id) FILTER (WHERE a.waiting = false) AS active_count,
        COUNT(a.applicant_id) FILTER (WHERE a.waiting = true) AS waiting_count
        FROM courses c
        JOIN languages l ON l.id = c.language_id
        LEFT JOIN attendances a ON a.course_id = c.id`

const courseGroupBy = ` GROUP BY c.id, l.name`

// CourseRepository persists courses and reports their occupancy.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses with their current occupancy.
func (r *CourseRepository) List(ctx context.Context, exec sqlx.ExtContext, filter models.CourseFilter) ([]models.Course, error) {
	target := executor(exec, r.db)
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.LanguageID != "" {
		conditions = append(conditions, fmt.Sprintf("c.language_id = $%d", len(args)+1))
		args = append(args, filter.LanguageID)
	}
	having := ""
	switch {
	case filter.OnlyVacant:
		having = " HAVING COUNT(a.applicant_id) FILTER (WHERE a.waiting = false) < c.seat_limit"
	case filter.OnlyWaiting:
		having = " HAVING COUNT(a.applicant_id) FILTER (WHERE a.waiting = true) > 0"
	}
	query := fmt.Sprintf("%s WHERE %s%s%s ORDER BY l.name ASC, c.level ASC, c.alternative ASC",
		courseSelect, strings.Join(conditions, " AND "), courseGroupBy, having)

	var courses []models.Course
	if err := sqlx.SelectContext(ctx, target, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a course with its occupancy.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	query := courseSelect + ` WHERE c.id = $1` + courseGroupBy
	var course models.Course
	if err := sqlx.GetContext(ctx, executor(exec, r.db), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// Lock takes a row lock on the course for the rest of the transaction.
func (r *CourseRepository) Lock(ctx context.Context, exec sqlx.ExtContext, id string) error {
	var locked string
	if err := sqlx.GetContext(ctx, executor(exec, r.db), &locked, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, id); err != nil {
		return fmt.Errorf("lock course: %w", err)
	}
	return nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, language_id, level, alternative, seat_limit, price, has_waiting_list, created_at, updated_at)
        VALUES (:id, :language_id, :level, :alternative, :seat_limit, :price, :has_waiting_list, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies the static attributes of a course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET language_id = :language_id, level = :level, alternative = :alternative, seat_limit = :seat_limit,
        price = :price, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SetWaitingList persists the waiting-list flag.
func (r *CourseRepository) SetWaitingList(ctx context.Context, exec sqlx.ExtContext, id string, hasWaitingList bool) error {
	const query = `UPDATE courses SET has_waiting_list = $1, updated_at = $2 WHERE id = $3`
	if _, err := executor(exec, r.db).ExecContext(ctx, query, hasWaitingList, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set waiting list flag: %w", err)
	}
	return nil
}

func listCourses(ctx context.Context, exec sqlx.QueryerContext, where string, args ...interface{}) ([]models.Course, error) {
	query := courseSelect
	if where != "" {
		query += " WHERE " + where
	}
	query += courseGroupBy
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, exec, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	return courses, nil
}
