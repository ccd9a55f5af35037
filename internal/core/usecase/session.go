package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

const sessionFallbackError = "Failed to create anonymous session"

// SessionBootstrapper makes sure an anonymous identity exists before any
// storage or backend call is made on behalf of the notebook.
type SessionBootstrapper struct {
	identity ports.IdentityService
	logger   *slog.Logger

	mu    sync.Mutex
	state domain.SessionState
	sub   ports.Subscription
}

func NewSessionBootstrapper(identity ports.IdentityService, logger *slog.Logger) *SessionBootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionBootstrapper{
		identity: identity,
		logger:   logger,
	}
}

// Bootstrap resolves the current identity, creating one only when none exists.
// A captured error is terminal: later calls return the failed state untouched.
func (b *SessionBootstrapper) Bootstrap(ctx context.Context) domain.SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state.Error != "" {
		return b.state
	}
	b.releaseLocked()

	userID, err := b.resolve(ctx)
	if err != nil {
		b.state.Error = sessionErrorText(err)
		b.state.Ready = true
		b.logger.Error("session_bootstrap_failed", "error", err)
		return b.state
	}

	b.sub = b.identity.OnAuthStateChange(b.onAuthStateChange)
	b.state.UserID = userID
	b.state.Ready = true
	b.logger.Info("session_ready", "user_id", userID)
	return b.state
}

func (b *SessionBootstrapper) resolve(ctx context.Context) (string, error) {
	current, err := b.identity.CurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("get current session: %w", err)
	}
	if current != nil {
		return current.UserID, nil
	}

	if err := b.identity.SignInAnonymously(ctx); err != nil {
		return "", fmt.Errorf("sign in anonymously: %w", err)
	}
	created, err := b.identity.CurrentSession(ctx)
	if err != nil {
		return "", fmt.Errorf("get created session: %w", err)
	}
	if created == nil {
		return "", nil
	}
	return created.UserID, nil
}

func (b *SessionBootstrapper) onAuthStateChange(event domain.AuthEvent, identity *domain.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case event == domain.AuthSignedOut:
		b.state.UserID = ""
	case identity != nil:
		b.state.UserID = identity.UserID
	}
	b.logger.Debug("auth_state_change", "event", string(event), "user_id", b.state.UserID)
}

func (b *SessionBootstrapper) State() domain.SessionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Close deregisters the auth listener. Safe to call repeatedly.
func (b *SessionBootstrapper) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

func (b *SessionBootstrapper) releaseLocked() {
	if b.sub == nil {
		return
	}
	b.sub.Unsubscribe()
	b.sub = nil
}

func sessionErrorText(err error) string {
	if msg := domain.DisplayMessage(err); msg != "" {
		return msg
	}
	return sessionFallbackError
}
