package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/config"
	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/core/usecase"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/backend"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/queue/nats"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/resilience"
)

// ProcessingObserver is told about each handled upload event.
type ProcessingObserver interface {
	StartProcessing(uploadedAt time.Time)
	FinishProcessing(duration time.Duration, err error)
}

// Worker processes documents whenever the API announces new uploads.
type Worker struct {
	Config    config.Config
	Processor *usecase.DocumentProcessor

	events   ports.UploadEventSubscriber
	observer ProcessingObserver
	logger   *slog.Logger
	timeout  time.Duration
	closeFn  func()
}

func NewWorker(cfg config.Config, logger *slog.Logger, observer ProcessingObserver) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutor(resiliencePolicy(cfg), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	api := backend.New(cfg.BackendURL, cfg.BackendAPIKey, backend.Options{
		Timeout:  seconds(cfg.BackendTimeoutSeconds),
		Executor: executor,
	})
	return newWorker(cfg, usecase.NewDocumentProcessor(api, nil, logger), queue, observer, logger, queue.Close), nil
}

func newWorker(
	cfg config.Config,
	processor *usecase.DocumentProcessor,
	events ports.UploadEventSubscriber,
	observer ProcessingObserver,
	logger *slog.Logger,
	closeFn func(),
) *Worker {
	return &Worker{
		Config:    cfg,
		Processor: processor,
		events:    events,
		observer:  observer,
		logger:    logger,
		timeout:   seconds(cfg.WorkerProcessTimeoutSec),
		closeFn:   closeFn,
	}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker_subscribed", "subject", w.Config.NATSSubject)
	return w.events.SubscribeDocumentsUploaded(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, event domain.DocumentsUploadedEvent) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if w.observer != nil {
		w.observer.StartProcessing(event.UploadedAt)
	}

	start := time.Now()
	_, err := w.Processor.Process(ctx)
	if w.observer != nil {
		w.observer.FinishProcessing(time.Since(start), err)
	}
	if err != nil {
		return err
	}
	w.logger.Info("documents_processed", "paths", event.Paths)
	return nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}
