package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/config"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/core/usecase"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/backend"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/identity"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/resilience"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/supabase"
)

type Options struct {
	Logger  *slog.Logger
	Metrics ports.NotebookMetrics
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Notebook  *usecase.Notebook
	Identity  *identity.Service
	Backend   *backend.Client
	Processor *usecase.DocumentProcessor
	Storage   ports.ObjectStorage

	// Queue is nil unless events are enabled.
	Queue *nats.Queue

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	app := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	executor := resilience.NewExecutor(resiliencePolicy(cfg), logger)

	store, err := app.openCredentialStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var auth identity.Authenticator = identity.LocalAuthenticator{}
	if cfg.StorageBackend == "supabase" {
		if cfg.SupabaseURL == "" || cfg.SupabaseAPIKey == "" {
			return nil, fmt.Errorf("supabase storage requires SUPABASE_URL and SUPABASE_API_KEY")
		}
		auth = supabase.NewAuth(cfg.SupabaseURL, cfg.SupabaseAPIKey, supabase.AuthOptions{
			Timeout:  seconds(cfg.BackendTimeoutSeconds),
			Executor: executor,
		})
	}
	app.Identity = identity.NewService(auth, identity.Options{
		Store:         store,
		RefreshMargin: seconds(cfg.IdentityRefreshMarginSec),
		Logger:        logger,
	})

	switch cfg.StorageBackend {
	case "supabase":
		app.Storage = supabase.NewStorage(cfg.SupabaseURL, cfg.SupabaseAPIKey, cfg.StorageBucket, app.Identity, supabase.StorageOptions{
			Timeout:  seconds(cfg.UploadTimeoutSeconds),
			Executor: executor,
		})
	case "local":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		app.Storage = storage
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	app.Backend = backend.New(cfg.BackendURL, cfg.BackendAPIKey, backend.Options{
		Timeout:  seconds(cfg.BackendTimeoutSeconds),
		Executor: executor,
	})

	var publisher ports.UploadEventPublisher
	if cfg.EventsEnabled {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
		publisher = queue
	}

	repo := usecase.NewSourceRepository(app.Storage, logger)
	app.Processor = usecase.NewDocumentProcessor(app.Backend, metrics, logger)
	app.Notebook = usecase.NewNotebook(usecase.NotebookDeps{
		Session: usecase.NewSessionBootstrapper(app.Identity, logger),
		Sources: usecase.NewSourceTracker(repo),
		Uploader: usecase.NewUploadOrchestrator(repo, usecase.UploadOrchestratorOptions{
			FileTimeout: seconds(cfg.UploadTimeoutSeconds),
			Publisher:   publisher,
			Metrics:     metrics,
			Logger:      logger,
		}),
		Chat: usecase.NewChatController(app.Backend, usecase.ChatControllerOptions{
			RequestTimeout: seconds(cfg.ChatTimeoutSeconds),
			Metrics:        metrics,
			Logger:         logger,
		}),
		Summary: usecase.NewSummaryController(app.Backend, usecase.SummaryControllerOptions{
			CacheTTL: time.Duration(cfg.SummaryCacheTTLMinutes) * time.Minute,
			Metrics:  metrics,
			Logger:   logger,
		}),
		Processor: app.Processor,
		History:   app.Backend,
	}, cfg.AnnounceExistingSources)
	app.closers = append(app.closers, app.Notebook.Close)

	ok = true
	return app, nil
}

func (a *App) openCredentialStore(ctx context.Context, cfg config.Config) (ports.CredentialStore, error) {
	switch cfg.CredentialStore {
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		repo := postgres.NewCredentialRepository(db, cfg.CredentialProfile)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case "sqlite":
		repo, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.CredentialProfile)
		if err != nil {
			return nil, fmt.Errorf("open sqlite credential store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		return repo, nil
	case "memory", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.CredentialStore)
	}
}

func resiliencePolicy(cfg config.Config) resilience.Policy {
	policy := resilience.DefaultPolicy()
	policy.Retry.Attempts = cfg.RetryMaxAttempts
	policy.Retry.InitialBackoff = time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond
	policy.Breaker.Enabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		policy.Breaker.MinRequests = uint32(cfg.BreakerMinRequests)
	}
	policy.Breaker.OpenTimeout = seconds(cfg.BreakerOpenTimeoutSec)
	return policy
}

// seconds maps a non-positive setting to zero, which callers treat as unbounded.
func seconds(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
