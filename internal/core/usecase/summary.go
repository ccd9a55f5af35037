package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

const (
	summaryCacheKey   = "summary"
	summaryFailedText = "Failed to load summary"
)

type SummaryControllerOptions struct {
	CacheTTL time.Duration
	Metrics  ports.NotebookMetrics
	Logger   *slog.Logger
}

// SummaryController backs the summary panel. A loaded summary never goes stale;
// it is only dropped from the cache after CacheTTL.
type SummaryController struct {
	api     ports.SummaryFetcher
	cache   *expirable.LRU[string, *domain.Summary]
	metrics ports.NotebookMetrics
	logger  *slog.Logger

	mu       sync.Mutex
	errText  string
	loading  bool
	fetching bool

	now func() time.Time
}

func NewSummaryController(api ports.SummaryFetcher, opts SummaryControllerOptions) *SummaryController {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	return &SummaryController{
		api:     api,
		cache:   expirable.NewLRU[string, *domain.Summary](1, nil, opts.CacheTTL),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// Fetch loads the summary when the panel is open and nothing has been loaded
// or failed yet. Otherwise it returns the current view without a request.
func (s *SummaryController) Fetch(ctx context.Context, open bool) ports.SummaryView {
	if !open {
		return s.View()
	}

	s.mu.Lock()
	_, cached := s.cache.Get(summaryCacheKey)
	if cached || s.errText != "" || s.fetching {
		s.mu.Unlock()
		return s.View()
	}
	s.beginLocked(true)
	s.mu.Unlock()
	return s.request(ctx)
}

// Refetch issues exactly one new request regardless of cached state.
func (s *SummaryController) Refetch(ctx context.Context) ports.SummaryView {
	s.mu.Lock()
	s.beginLocked(false)
	s.mu.Unlock()
	return s.request(ctx)
}

func (s *SummaryController) beginLocked(initial bool) {
	s.fetching = true
	s.loading = initial
}

func (s *SummaryController) request(ctx context.Context) ports.SummaryView {
	start := s.now()
	summary, err := s.api.FetchSummary(ctx)
	s.metrics.ObserveSummary(err, s.now().Sub(start))

	s.mu.Lock()
	s.fetching = false
	s.loading = false
	if err != nil {
		s.errText = domain.DisplayMessage(err)
		if s.errText == "" {
			s.errText = summaryFailedText
		}
		s.logger.Warn("summary_fetch_failed", "error", err)
	} else {
		s.errText = ""
		s.cache.Add(summaryCacheKey, summary)
	}
	s.mu.Unlock()

	return s.View()
}

func (s *SummaryController) View() ports.SummaryView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := ports.SummaryView{
		Error:    s.errText,
		Loading:  s.loading,
		Fetching: s.fetching,
	}
	if summary, ok := s.cache.Peek(summaryCacheKey); ok {
		view.Summary = summary
	}
	return view
}
