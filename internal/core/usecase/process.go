package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// DocumentProcessor asks the backend to index everything uploaded so far.
type DocumentProcessor struct {
	api     ports.DocumentProcessingAPI
	metrics ports.NotebookMetrics
	logger  *slog.Logger

	processing atomic.Int32
	now        func() time.Time
}

func NewDocumentProcessor(api ports.DocumentProcessingAPI, metrics ports.NotebookMetrics, logger *slog.Logger) *DocumentProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &DocumentProcessor{
		api:     api,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *DocumentProcessor) IsProcessing() bool {
	return p.processing.Load() > 0
}

func (p *DocumentProcessor) Process(ctx context.Context) (json.RawMessage, error) {
	p.processing.Add(1)
	defer p.processing.Add(-1)

	start := p.now()
	result, err := p.api.ProcessDocuments(ctx)
	p.metrics.ObserveProcessing(err, p.now().Sub(start))
	if err != nil {
		p.logger.Error("process_documents_failed", "error", err)
		return nil, fmt.Errorf("process documents: %w", err)
	}

	p.logger.Info("process_documents_done", "result_bytes", len(result))
	return result, nil
}
