package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/langcenter-api/internal/models"
)

// LogRepository stores course log entries.
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository constructs a LogRepository.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Append writes an entry, within the caller's transaction when exec is set.
func (r *LogRepository) Append(ctx context.Context, exec sqlx.ExtContext, entry *models.LogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO log_entries (id, timestamp, message, course_id) VALUES (:id, :timestamp, :message, :course_id)`
	if _, err := sqlx.NamedExecContext(ctx, executor(exec, r.db), query, entry); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// List returns the newest entries first, optionally restricted to one course.
func (r *LogRepository) List(ctx context.Context, courseID string, limit int) ([]models.LogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `SELECT id, timestamp, message, course_id FROM log_entries`
	args := []interface{}{}
	if courseID != "" {
		query += ` WHERE course_id = $1`
		args = append(args, courseID)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT %d`, limit)

	var entries []models.LogEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}
