package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// Authenticator issues anonymous identities.
type Authenticator interface {
	SignUpAnonymous(ctx context.Context) (domain.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Identity, error)
}

type Options struct {
	// Store persists the identity across restarts. Nil keeps it in memory only.
	Store ports.CredentialStore
	// RefreshMargin refreshes tokens this long before they expire.
	RefreshMargin time.Duration
	Logger        *slog.Logger
}

type listener func(domain.AuthEvent, *domain.Identity)

// Service owns the process-wide anonymous identity.
type Service struct {
	auth          Authenticator
	store         ports.CredentialStore
	refreshMargin time.Duration
	logger        *slog.Logger

	mu        sync.Mutex
	current   *domain.Identity
	loaded    bool
	listeners map[uint64]listener
	nextID    uint64

	now func() time.Time
}

var (
	_ ports.IdentityService = (*Service)(nil)
	_ ports.TokenSource     = (*Service)(nil)
)

func NewService(auth Authenticator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = time.Minute
	}
	return &Service{
		auth:          auth,
		store:         opts.Store,
		refreshMargin: opts.RefreshMargin,
		logger:        opts.Logger,
		listeners:     make(map[uint64]listener),
		now:           time.Now,
	}
}

// CurrentSession returns the active identity or nil. A persisted identity is
// loaded on first use and refreshed when it is about to expire.
func (s *Service) CurrentSession(ctx context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	if s.current == nil {
		s.mu.Unlock()
		return nil, nil
	}
	if !s.current.Expired(s.now().Add(s.refreshMargin)) {
		out := *s.current
		s.mu.Unlock()
		return &out, nil
	}

	refreshed, err := s.auth.Refresh(ctx, s.current.RefreshToken)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	s.setLocked(ctx, &refreshed)
	s.mu.Unlock()

	s.logger.Info("auth_token_refreshed", "user_id", refreshed.UserID)
	s.emit(domain.AuthTokenRefreshed, &refreshed)
	return &refreshed, nil
}

func (s *Service) SignInAnonymously(ctx context.Context) error {
	created, err := s.auth.SignUpAnonymous(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.loaded = true
	s.setLocked(ctx, &created)
	s.mu.Unlock()

	s.logger.Info("auth_signed_in", "user_id", created.UserID, "anonymous", created.Anonymous)
	s.emit(domain.AuthSignedIn, &created)
	return nil
}

func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.loaded = true
	var err error
	if s.store != nil {
		err = s.store.Clear(ctx)
	}
	s.mu.Unlock()

	s.emit(domain.AuthSignedOut, nil)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// AccessToken returns the bearer token of the current identity.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	current, err := s.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", domain.WrapError(domain.ErrUnauthorized, "access token", errors.New("no active session"))
	}
	return current.AccessToken, nil
}

func (s *Service) OnAuthStateChange(fn func(domain.AuthEvent, *domain.Identity)) ports.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return &subscription{release: func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}}
}

func (s *Service) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// emit runs listeners without holding s.mu; listeners may call back into s.
func (s *Service) emit(event domain.AuthEvent, identity *domain.Identity) {
	s.mu.Lock()
	fns := make([]listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		var snapshot *domain.Identity
		if identity != nil {
			copied := *identity
			snapshot = &copied
		}
		fn(event, snapshot)
	}
}

func (s *Service) loadLocked(ctx context.Context) error {
	if s.store == nil {
		s.loaded = true
		return nil
	}
	stored, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	s.current = stored
	s.loaded = true
	return nil
}

func (s *Service) setLocked(ctx context.Context, identity *domain.Identity) {
	s.current = identity
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, *identity); err != nil {
		s.logger.Warn("credentials_save_failed", "user_id", identity.UserID, "error", err)
	}
}

type subscription struct {
	once    sync.Once
	release func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.release)
}
