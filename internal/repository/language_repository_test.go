package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/langcenter-api/internal/models"
)

func TestLanguageRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLanguageRepository(db)

	begin := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := languageRow(sqlmock.NewRows(languageRowColumns), "lang-1", "English", begin)
	languageRow(rows, "lang-2", "French", begin)
	mock.ExpectQuery("SELECT id, name, signup_begin .* FROM languages ORDER BY name ASC").WillReturnRows(rows)

	languages, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, languages, 2)
	assert.Equal(t, "French", languages[1].Name)
	assert.Equal(t, begin.Add(48*time.Hour), languages[0].SignupRndWindowEnd)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLanguageRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLanguageRepository(db)

	mock.ExpectQuery("FROM languages WHERE id = ").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLanguageRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLanguageRepository(db)

	mock.ExpectExec("INSERT INTO languages").
		WithArgs(sqlmock.AnyArg(), "Spanish", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	language := &models.Language{Name: "Spanish"}
	require.NoError(t, repo.Create(context.Background(), language))
	assert.NotEmpty(t, language.ID)
	assert.False(t, language.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
