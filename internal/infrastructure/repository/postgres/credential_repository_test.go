package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewCredentialRepository(db, "default"), mock, func() { _ = db.Close() }
}

func TestLoadReturnsNilWhenNoCredentials(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT user_id, access_token, refresh_token, expires_at, anonymous").
		WithArgs("default").
		WillReturnError(sql.ErrNoRows)

	identity, err := repo.Load(context.Background())
	if err != nil || identity != nil {
		t.Fatalf("Load() = %+v, %v", identity, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadScansIdentity(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	expires := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT user_id").
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "access_token", "refresh_token", "expires_at", "anonymous"}).
			AddRow("u-1", "at", "rt", expires, true))

	identity, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if identity.UserID != "u-1" || identity.RefreshToken != "rt" || !identity.ExpiresAt.Equal(expires) || !identity.Anonymous {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestSaveUpsertsByProfile(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO notebook_credentials").
		WithArgs("default", "u-1", "at", "rt", sqlmock.AnyArg(), true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), domain.Identity{UserID: "u-1", AccessToken: "at", RefreshToken: "rt", Anonymous: true})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClearWrapsDriverError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	driverErr := errors.New("connection reset")
	mock.ExpectExec("DELETE FROM notebook_credentials").
		WithArgs("default").
		WillReturnError(driverErr)

	if err := repo.Clear(context.Background()); !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestEnsureSchemaTakesAdvisoryLock(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notebook_credentials").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
