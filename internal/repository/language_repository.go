package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/langcenter-api/internal/models"
)

const languageColumns = `id, name, signup_begin, signup_rnd_window_end, signup_manual_end, signup_fcfs_begin, signup_end, created_at, updated_at`

// LanguageRepository persists languages and their signup calendars.
type LanguageRepository struct {
	db *sqlx.DB
}

// NewLanguageRepository constructs a LanguageRepository.
func NewLanguageRepository(db *sqlx.DB) *LanguageRepository {
	return &LanguageRepository{db: db}
}

// List returns all languages ordered by name.
func (r *LanguageRepository) List(ctx context.Context) ([]models.Language, error) {
	query := `SELECT ` + languageColumns + ` FROM languages ORDER BY name ASC`
	var languages []models.Language
	if err := r.db.SelectContext(ctx, &languages, query); err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}
	return languages, nil
}

// FindByID fetches a language by ID.
func (r *LanguageRepository) FindByID(ctx context.Context, id string) (*models.Language, error) {
	query := `SELECT ` + languageColumns + ` FROM languages WHERE id = $1`
	var language models.Language
	if err := r.db.GetContext(ctx, &language, query, id); err != nil {
		return nil, err
	}
	return &language, nil
}

// Create inserts a new language.
func (r *LanguageRepository) Create(ctx context.Context, language *models.Language) error {
	if language.ID == "" {
		language.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	language.CreatedAt = now
	language.UpdatedAt = now
	const query = `INSERT INTO languages (id, name, signup_begin, signup_rnd_window_end, signup_manual_end, signup_fcfs_begin, signup_end, created_at, updated_at)
        VALUES (:id, :name, :signup_begin, :signup_rnd_window_end, :signup_manual_end, :signup_fcfs_begin, :signup_end, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, language); err != nil {
		return fmt.Errorf("create language: %w", err)
	}
	return nil
}

// Update modifies name and calendar of a language.
func (r *LanguageRepository) Update(ctx context.Context, language *models.Language) error {
	language.UpdatedAt = time.Now().UTC()
	const query = `UPDATE languages SET name = :name, signup_begin = :signup_begin, signup_rnd_window_end = :signup_rnd_window_end,
        signup_manual_end = :signup_manual_end, signup_fcfs_begin = :signup_fcfs_begin, signup_end = :signup_end, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, language); err != nil {
		return fmt.Errorf("update language: %w", err)
	}
	return nil
}

func listLanguages(ctx context.Context, exec sqlx.QueryerContext) ([]models.Language, error) {
	var languages []models.Language
	if err := sqlx.SelectContext(ctx, exec, &languages, `SELECT `+languageColumns+` FROM languages`); err != nil {
		return nil, fmt.Errorf("load languages: %w", err)
	}
	return languages, nil
}
