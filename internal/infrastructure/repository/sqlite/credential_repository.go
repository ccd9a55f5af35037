package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// CredentialRepository persists the CLI's anonymous identity in a local
// database file so repeated invocations reuse one notebook user.
type CredentialRepository struct {
	db      *sql.DB
	profile string
}

var _ ports.CredentialStore = (*CredentialRepository)(nil)

func Open(ctx context.Context, dbPath, profile string) (*CredentialRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if profile == "" {
		profile = "default"
	}
	repo := &CredentialRepository{db: db, profile: profile}
	if err := repo.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *CredentialRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS credentials (
  profile TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  access_token TEXT NOT NULL,
  refresh_token TEXT NOT NULL,
  expires_at TEXT,
  anonymous INTEGER NOT NULL,
  updated_at TEXT NOT NULL
);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create credentials table: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Load(ctx context.Context) (*domain.Identity, error) {
	var (
		identity  domain.Identity
		expiresAt sql.NullString
		anonymous int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, access_token, refresh_token, expires_at, anonymous FROM credentials WHERE profile = ?`,
		r.profile,
	).Scan(&identity.UserID, &identity.AccessToken, &identity.RefreshToken, &expiresAt, &anonymous)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	identity.Anonymous = anonymous != 0
	if expiresAt.Valid && expiresAt.String != "" {
		parsed, err := time.Parse(time.RFC3339, expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		identity.ExpiresAt = parsed
	}
	return &identity, nil
}

func (r *CredentialRepository) Save(ctx context.Context, identity domain.Identity) error {
	const stmt = `
INSERT INTO credentials (profile, user_id, access_token, refresh_token, expires_at, anonymous, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(profile) DO UPDATE SET
  user_id=excluded.user_id,
  access_token=excluded.access_token,
  refresh_token=excluded.refresh_token,
  expires_at=excluded.expires_at,
  anonymous=excluded.anonymous,
  updated_at=excluded.updated_at;
`
	var expiresAt sql.NullString
	if !identity.ExpiresAt.IsZero() {
		expiresAt = sql.NullString{String: identity.ExpiresAt.UTC().Format(time.RFC3339), Valid: true}
	}
	anonymous := 0
	if identity.Anonymous {
		anonymous = 1
	}
	_, err := r.db.ExecContext(ctx, stmt,
		r.profile,
		identity.UserID,
		identity.AccessToken,
		identity.RefreshToken,
		expiresAt,
		anonymous,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, r.profile); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Close() error {
	return r.db.Close()
}
