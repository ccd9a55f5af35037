package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// CredentialRepository keeps one anonymous identity per profile, so several
// BFF replicas resolve the same notebook user.
type CredentialRepository struct {
	db      *sql.DB
	profile string
	now     func() time.Time
}

var _ ports.CredentialStore = (*CredentialRepository)(nil)

func NewCredentialRepository(db *sql.DB, profile string) *CredentialRepository {
	if profile == "" {
		profile = "default"
	}
	return &CredentialRepository{db: db, profile: profile, now: time.Now}
}

func (r *CredentialRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS notebook_credentials (
	profile TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ,
	anonymous BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Load(ctx context.Context) (*domain.Identity, error) {
	const query = `
SELECT user_id, access_token, refresh_token, expires_at, anonymous
FROM notebook_credentials
WHERE profile = $1`

	var (
		identity  domain.Identity
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, r.profile).Scan(
		&identity.UserID,
		&identity.AccessToken,
		&identity.RefreshToken,
		&expiresAt,
		&identity.Anonymous,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select credentials: %w", err)
	}
	if expiresAt.Valid {
		identity.ExpiresAt = expiresAt.Time.UTC()
	}
	return &identity, nil
}

func (r *CredentialRepository) Save(ctx context.Context, identity domain.Identity) error {
	const query = `
INSERT INTO notebook_credentials (profile, user_id, access_token, refresh_token, expires_at, anonymous, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (profile) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	access_token = EXCLUDED.access_token,
	refresh_token = EXCLUDED.refresh_token,
	expires_at = EXCLUDED.expires_at,
	anonymous = EXCLUDED.anonymous,
	updated_at = EXCLUDED.updated_at`

	var expiresAt sql.NullTime
	if !identity.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: identity.ExpiresAt.UTC(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		r.profile,
		identity.UserID,
		identity.AccessToken,
		identity.RefreshToken,
		expiresAt,
		identity.Anonymous,
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notebook_credentials WHERE profile = $1`, r.profile); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
