package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestCourseRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "title", "description", "published", "registry_course_code", "created_at", "updated_at"}).
		AddRow("crs-1", "FIN-LIT-101", "Financial Literacy Basics", nil, true, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = $1")).
		WithArgs("crs-1").
		WillReturnRows(rows)

	course, err := repo.FindByID(context.Background(), "crs-1")
	require.NoError(t, err)
	require.Equal(t, "FIN-LIT-101", course.Code)
	require.Nil(t, course.RegistryCourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySetRegistryCourseCode(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET registry_course_code = $2")).
		WithArgs("crs-1", "SSG-FIN-101", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetRegistryCourseCode(context.Background(), "crs-1", "SSG-FIN-101")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryMarkSubmitted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance SET submitted_to_registry = true")).
		WithArgs("att-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkSubmitted(context.Background(), "att-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
