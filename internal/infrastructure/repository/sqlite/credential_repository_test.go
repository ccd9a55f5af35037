package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

func TestCredentialRoundTripAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state", "notebook.db")

	repo, err := Open(ctx, dbPath, "")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got, err := repo.Load(ctx); err != nil || got != nil {
		t.Fatalf("expected empty store, got %+v, %v", got, err)
	}

	expires := time.Date(2026, 10, 15, 12, 30, 0, 0, time.UTC)
	if err := repo.Save(ctx, domain.Identity{UserID: "u-1", AccessToken: "at", RefreshToken: "rt", ExpiresAt: expires, Anonymous: true}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, domain.Identity{UserID: "u-1", AccessToken: "at-2", RefreshToken: "rt-2", ExpiresAt: expires, Anonymous: true}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	_ = repo.Close()

	reopened, err := Open(ctx, dbPath, "default")
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.AccessToken != "at-2" || !got.ExpiresAt.Equal(expires) || !got.Anonymous {
		t.Fatalf("unexpected identity %+v", got)
	}

	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got, _ := reopened.Load(ctx); got != nil {
		t.Fatalf("expected cleared store")
	}
}

func TestProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "notebook.db")

	work, err := Open(ctx, dbPath, "work")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer work.Close()
	if err := work.Save(ctx, domain.Identity{UserID: "w", AccessToken: "a"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	home, err := Open(ctx, dbPath, "home")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer home.Close()
	if got, _ := home.Load(ctx); got != nil {
		t.Fatalf("expected no identity for other profile, got %+v", got)
	}
}
