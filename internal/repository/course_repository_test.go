package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/internal/models"
)

func TestCourseRepositoryListVacant(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(courseRowColumns).
		AddRow("course-1", "lang-1", "A1", "a", 20, 80, false, now, now, "English", 12, 3)
	mock.ExpectQuery(`(?s)FROM courses c .* WHERE 1=1 AND c.language_id = \$1 GROUP BY c.id, l.name HAVING`).
		WithArgs("lang-1").
		WillReturnRows(rows)

	courses, err := repo.List(context.Background(), nil, models.CourseFilter{LanguageID: "lang-1", OnlyVacant: true})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 12, courses[0].ActiveCount)
	assert.Equal(t, 3, courses[0].WaitingCount)
	assert.Equal(t, 8, courses[0].FreeSeats())
	assert.Equal(t, "English A1 a", courses[0].FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByIDWithinTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM courses WHERE id = \$1 FOR UPDATE`).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("course-1"))
	mock.ExpectQuery(`WHERE c.id = \$1 GROUP BY`).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).AddRow("course-1", "lang-1", "B2", "", 1, 80, true, now, now, "German", 1, 4))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	require.NoError(t, repo.Lock(context.Background(), tx, "course-1"))
	course, err := repo.FindByID(context.Background(), tx, "course-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.True(t, course.IsFull())
	assert.True(t, course.IsOverbooked(4))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySetWaitingList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("UPDATE courses SET has_waiting_list").
		WithArgs(true, sqlmock.AnyArg(), "course-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetWaitingList(context.Background(), nil, "course-1", true))
	assert.NoError(t, mock.ExpectationsWereMet())
}
