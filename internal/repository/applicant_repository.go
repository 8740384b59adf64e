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

const applicantColumns = `id, mail, tag, first_name, last_name, origin, is_student, created_at, updated_at`

// ApplicantRepository persists applicants.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs an ApplicantRepository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// FindByID fetches an applicant without attendances.
func (r *ApplicantRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE id = $1`
	var applicant models.Applicant
	if err := sqlx.GetContext(ctx, executor(exec, r.db), &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// FindByMail fetches an applicant by mail address, case-insensitively.
func (r *ApplicantRepository) FindByMail(ctx context.Context, exec sqlx.ExtContext, mail string) (*models.Applicant, error) {
	query := `SELECT ` + applicantColumns + ` FROM applicants WHERE LOWER(mail) = $1`
	var applicant models.Applicant
	if err := sqlx.GetContext(ctx, executor(exec, r.db), &applicant, query, strings.ToLower(mail)); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// Create inserts a new applicant.
func (r *ApplicantRepository) Create(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now
	}
	applicant.UpdatedAt = now
	const query = `INSERT INTO applicants (id, mail, tag, first_name, last_name, origin, is_student, created_at, updated_at)
        VALUES (:id, :mail, :tag, :first_name, :last_name, :origin, :is_student, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, executor(exec, r.db), query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// Update overwrites the personal data of an applicant.
func (r *ApplicantRepository) Update(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	applicant.UpdatedAt = time.Now().UTC()
	const query = `UPDATE applicants SET mail = :mail, tag = :tag, first_name = :first_name, last_name = :last_name,
        origin = :origin, is_student = :is_student, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, executor(exec, r.db), query, applicant); err != nil {
		return fmt.Errorf("update applicant: %w", err)
	}
	return nil
}

// LoadAttendances attaches the applicant's attendances with their courses and languages.
func (r *ApplicantRepository) LoadAttendances(ctx context.Context, exec sqlx.ExtContext, applicant *models.Applicant) error {
	target := executor(exec, r.db)
	var attendances []models.Attendance
	query := `SELECT ` + attendanceColumns + ` FROM attendances WHERE applicant_id = $1 ORDER BY registered ASC`
	if err := sqlx.SelectContext(ctx, target, &attendances, query, applicant.ID); err != nil {
		return fmt.Errorf("load applicant attendances: %w", err)
	}
	courses, err := listCourses(ctx, target, "c.id IN (SELECT course_id FROM attendances WHERE applicant_id = $1)", applicant.ID)
	if err != nil {
		return err
	}
	languages, err := listLanguages(ctx, target)
	if err != nil {
		return err
	}
	applicant.Attendances = nil
	linkGraph(languages, courses, []*models.Applicant{applicant}, attendances)
	return nil
}

// Search returns applicants matching every term in first name, last name, mail or tag.
func (r *ApplicantRepository) Search(ctx context.Context, terms []string, limit int) ([]models.Applicant, error) {
	if len(terms) == 0 {
		return []models.Applicant{}, nil
	}
	conditions := make([]string, 0, len(terms))
	args := make([]interface{}, 0, len(terms)+1)
	for _, term := range terms {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR mail ILIKE $%d OR tag ILIKE $%d)", n, n, n, n))
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT `+applicantColumns+` FROM applicants WHERE %s ORDER BY last_name ASC, first_name ASC LIMIT $%d`,
		strings.Join(conditions, " AND "), len(args))

	applicants := []models.Applicant{}
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, fmt.Errorf("search applicants: %w", err)
	}
	return applicants, nil
}

// ListSharingTag returns applicants whose non-empty tag is used by more than one applicant,
// ordered by tag.
func (r *ApplicantRepository) ListSharingTag(ctx context.Context) ([]models.Applicant, error) {
	const query = `SELECT ` + applicantColumns + ` FROM applicants
        WHERE tag IN (SELECT tag FROM applicants WHERE tag <> '' GROUP BY tag HAVING COUNT(*) > 1)
        ORDER BY tag ASC, last_name ASC, first_name ASC`
	applicants := []models.Applicant{}
	if err := r.db.SelectContext(ctx, &applicants, query); err != nil {
		return nil, fmt.Errorf("list duplicate tags: %w", err)
	}
	return applicants, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}
