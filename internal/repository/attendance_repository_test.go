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

func TestAttendanceRepositoryLoadWaitingGraph(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	begin := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM languages").
		WillReturnRows(languageRow(sqlmock.NewRows(languageRowColumns), "lang-1", "English", begin))
	mock.ExpectQuery("FROM courses c").
		WillReturnRows(sqlmock.NewRows(courseRowColumns).
			AddRow("course-a", "lang-1", "A1", "a", 1, 80, false, begin, begin, "English", 0, 2).
			AddRow("course-b", "lang-1", "A1", "b", 1, 80, false, begin, begin, "English", 1, 0))
	mock.ExpectQuery("FROM applicants WHERE id IN").
		WillReturnRows(sqlmock.NewRows(applicantRowColumns).
			AddRow("x", "x@example.org", "", "Xena", "X", "", true, begin, begin).
			AddRow("y", "y@example.org", "", "Yuri", "Y", "", false, begin, begin))
	mock.ExpectQuery("FROM attendances WHERE applicant_id IN").
		WillReturnRows(sqlmock.NewRows(attendanceRowColumns).
			AddRow("x", "course-b", false, begin, 1.0, true, 0.0, false, nil).
			AddRow("x", "course-a", true, begin.Add(time.Hour), 0.0, false, 0.0, false, nil).
			AddRow("y", "course-a", true, begin.Add(2*time.Hour), 0.0, false, 0.0, false, nil))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)
	waiting, err := repo.LoadWaitingGraph(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, waiting, 2)
	first := waiting[0]
	assert.Equal(t, "x", first.ApplicantID)
	require.NotNil(t, first.Applicant)
	require.NotNil(t, first.Course)
	require.NotNil(t, first.Course.Language)
	assert.Len(t, first.Applicant.Attendances, 2)
	assert.True(t, first.Applicant.ActiveInParallelCourse(first.Course))
	assert.Same(t, first.Course, waiting[1].Course)
	assert.Equal(t, "y", waiting[1].ApplicantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkGraphLeavesUnknownReferencesNil(t *testing.T) {
	applicant := &models.Applicant{ID: "x"}
	linked := linkGraph(nil, nil, []*models.Applicant{applicant}, []models.Attendance{{ApplicantID: "x", CourseID: "gone", Waiting: true}})
	require.Len(t, linked, 1)
	assert.Nil(t, linked[0].Course)
	assert.Same(t, applicant, linked[0].Applicant)
}

func TestAttendanceRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("UPDATE attendances SET waiting").
		WithArgs(false, 1.0, true, 0.0, false, nil, "x", "course-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), nil, &models.Attendance{
		ApplicantID: "x", CourseID: "course-a", Waiting: false, Discount: 1.0, InformedAboutRejection: true,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	waiting := false
	mock.ExpectQuery(`WHERE 1=1 AND a.course_id = \$1 AND a.waiting = \$2`).
		WithArgs("course-a", false).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, attendanceRowColumns...), "first_name", "last_name", "mail", "tag", "course_name")).
			AddRow("x", "course-a", false, now, 0.5, true, 40.0, true, now, "Xena", "X", "x@example.org", "123", "English A1 a"))

	details, err := repo.List(context.Background(), models.AttendanceFilter{CourseID: "course-a", Waiting: &waiting})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "English A1 a", details[0].CourseName)
	assert.Equal(t, 0.5, details[0].Discount)
	require.NotNil(t, details[0].PayingDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("DELETE FROM attendances").WithArgs("x", "course-a").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), nil, "x", "course-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryPaymentStatistics(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`FROM attendances\s+WHERE waiting = false AND discount < \$1\s+GROUP BY paid_by_cash`).
		WithArgs(models.MaxDiscount).
		WillReturnRows(sqlmock.NewRows([]string{"paid_by_cash", "count", "total", "average", "minimum", "maximum"}).
			AddRow(false, 3, 240.0, 80.0, 40.0, 120.0).
			AddRow(true, 1, 60.0, 60.0, 60.0, 60.0))

	stats, err := repo.PaymentStatistics(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, models.PaymentStatistics{PaidByCash: false, Count: 3, Sum: 240, Average: 80, Min: 40, Max: 120}, stats[0])
	assert.True(t, stats[1].PaidByCash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryOutstanding(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	registered := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	columns := append(append([]string{}, attendanceRowColumns...), "first_name", "last_name", "mail", "tag", "course_name", "price", "amount_due")
	mock.ExpectQuery(`WHERE a.waiting = false AND a.amount_paid < c.price \* \(1 - a.discount\)`).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("app-1", "course-a", false, registered, 0.5, false, 10.0, false, nil, "Ada", "Lovelace", "ada@example.org", "", "English A1", 100, 40.0))

	outstanding, err := repo.Outstanding(context.Background())
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, "English A1", outstanding[0].CourseName)
	assert.Equal(t, 100, outstanding[0].Price)
	assert.Equal(t, 40.0, outstanding[0].AmountDue)
	assert.Equal(t, "app-1", outstanding[0].ApplicantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
