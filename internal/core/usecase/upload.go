package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// UploadCallbacks receive the outcome of a batch. OnSuccess fires at most once
// per batch and only when at least one file was stored.
type UploadCallbacks struct {
	OnSuccess func(sources []domain.Source, message string)
	OnError   func(message string)
}

type UploadOrchestratorOptions struct {
	FileTimeout time.Duration
	Publisher   ports.UploadEventPublisher
	Metrics     ports.NotebookMetrics
	Logger      *slog.Logger
}

// UploadOrchestrator uploads a selection of files concurrently and reports one aggregate result.
// Overlapping batches are a caller error; there is no internal lock.
type UploadOrchestrator struct {
	repo        *SourceRepository
	fileTimeout time.Duration
	publisher   ports.UploadEventPublisher
	metrics     ports.NotebookMetrics
	logger      *slog.Logger

	uploading atomic.Bool
	now       func() time.Time
}

func NewUploadOrchestrator(repo *SourceRepository, opts UploadOrchestratorOptions) *UploadOrchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	return &UploadOrchestrator{
		repo:        repo,
		fileTimeout: opts.FileTimeout,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

func (o *UploadOrchestrator) IsUploading() bool {
	return o.uploading.Load()
}

// UploadFiles uploads every eligible file in files. Eligibility is decided against
// currentCount as captured at batch start, so one batch may carry the tracked
// total past domain.MaxSources.
func (o *UploadOrchestrator) UploadFiles(
	ctx context.Context,
	files []domain.File,
	currentCount int,
	cb UploadCallbacks,
) domain.UploadBatchResult {
	if files == nil {
		o.logger.Error("upload_batch_failed", "error", "no file selection")
		notify(cb.OnError, domain.UploadFailedText)
		return domain.UploadBatchResult{}
	}

	o.uploading.Store(true)
	defer o.uploading.Store(false)
	start := o.now()

	eligible := make([]domain.File, 0, len(files))
	for _, f := range files {
		if f.IsPDF() && currentCount < domain.MaxSources {
			eligible = append(eligible, f)
		}
	}

	outcomes := make([]*domain.Source, len(eligible))
	wg := conc.NewWaitGroup()
	for i, f := range eligible {
		wg.Go(func() {
			outcomes[i] = o.uploadOne(ctx, f, currentCount)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		o.logger.Error("upload_batch_failed", "error", recovered.String())
		o.metrics.ObserveUploadBatch(0, len(eligible), o.now().Sub(start))
		notify(cb.OnError, domain.UploadFailedText)
		return domain.UploadBatchResult{
			FailedCount: len(eligible),
			Eligible:    len(eligible),
			Skipped:     len(files) - len(eligible),
		}
	}

	result := domain.UploadBatchResult{
		Succeeded: []domain.Source{},
		Eligible:  len(eligible),
		Skipped:   len(files) - len(eligible),
	}
	for _, src := range outcomes {
		if src == nil {
			result.FailedCount++
			continue
		}
		result.Succeeded = append(result.Succeeded, *src)
		result.Paths = append(result.Paths, src.ObjectName)
	}

	o.metrics.ObserveUploadBatch(len(result.Succeeded), result.FailedCount, o.now().Sub(start))
	o.logger.Info("upload_batch_done",
		"eligible", result.Eligible,
		"succeeded", len(result.Succeeded),
		"failed", result.FailedCount,
		"skipped", result.Skipped,
		"paths", result.Paths,
	)

	if len(result.Succeeded) == 0 {
		return result
	}

	result.Message = domain.UploadSucceededText(len(result.Succeeded))
	o.publish(ctx, result.Paths)
	if cb.OnSuccess != nil {
		cb.OnSuccess(result.Succeeded, result.Message)
	}
	return result
}

func (o *UploadOrchestrator) uploadOne(ctx context.Context, file domain.File, currentCount int) *domain.Source {
	if o.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.fileTimeout)
		defer cancel()
	}

	src, err := o.repo.Upload(ctx, file, currentCount)
	if err != nil {
		o.logger.Warn("upload_file_failed", "name", file.Name, "error", err)
		return nil
	}
	return src
}

func (o *UploadOrchestrator) publish(ctx context.Context, paths []string) {
	if o.publisher == nil {
		return
	}
	event := domain.DocumentsUploadedEvent{Paths: paths, UploadedAt: o.now().UTC()}
	if err := o.publisher.PublishDocumentsUploaded(ctx, event); err != nil {
		o.logger.Warn("publish_documents_uploaded_failed", "paths", paths, "error", err)
	}
}

func notify(fn func(string), message string) {
	if fn != nil {
		fn(message)
	}
}
