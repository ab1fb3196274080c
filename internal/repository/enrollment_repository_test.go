package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/hawkerboys/tms-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	nric := "S****123A"
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "class_run_id", "learner_id", "status", "enrolled_on", "registry_enrollment_id",
		"created_at", "updated_at", "run_reference_code", "learner_masked_nric", "learner_name",
	}).AddRow("enr-1", "run-1", "lrn-1", models.EnrollmentStatusRegistered, now, nil, now, now, "FIN-2024-01", nric, "Tan Mei Ling")

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	detail, err := repo.FindDetailByID(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Equal(t, "FIN-2024-01", detail.RunReferenceCode)
	require.Equal(t, "S****123A", detail.LearnerIdentifier())
	require.Nil(t, detail.RegistryEnrollmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositorySetRegistryEnrollmentID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET registry_enrollment_id = $2")).
		WithArgs("enr-1", "ENR-99001", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetRegistryEnrollmentID(context.Background(), "enr-1", "ENR-99001")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("run-1", "lrn-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "run-1", "lrn-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}
