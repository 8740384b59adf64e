package repository

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var (
	languageRowColumns   = []string{"id", "name", "signup_begin", "signup_rnd_window_end", "signup_manual_end", "signup_fcfs_begin", "signup_end", "created_at", "updated_at"}
	courseRowColumns     = []string{"id", "language_id", "level", "alternative", "seat_limit", "price", "has_waiting_list", "created_at", "updated_at", "language_name", "active_count", "waiting_count"}
	applicantRowColumns  = []string{"id", "mail", "tag", "first_name", "last_name", "origin", "is_student", "created_at", "updated_at"}
	attendanceRowColumns = []string{"applicant_id", "course_id", "waiting", "registered", "discount", "informed_about_rejection", "amount_paid", "paid_by_cash", "paying_date"}
)

func languageRow(rows *sqlmock.Rows, id, name string, begin time.Time) *sqlmock.Rows {
	return rows.AddRow(id, name, begin, begin.Add(48*time.Hour), begin.Add(72*time.Hour), begin.Add(96*time.Hour), begin.Add(30*24*time.Hour), begin, begin)
}
