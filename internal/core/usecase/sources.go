package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

// SourceRepository maps objects in remote storage to locally tracked sources.
type SourceRepository struct {
	storage ports.ObjectStorage
	logger  *slog.Logger

	newID func() string
	now   func() time.Time
}

func NewSourceRepository(storage ports.ObjectStorage, logger *slog.Logger) *SourceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceRepository{
		storage: storage,
		logger:  logger,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// ListExisting returns the most recently updated PDFs. Listing is best-effort:
// any storage failure yields an empty result.
func (r *SourceRepository) ListExisting(ctx context.Context) []domain.Source {
	objects, err := r.storage.List(ctx, "", domain.ListOptions{
		Limit:  domain.MaxSources,
		SortBy: domain.SortBy{Column: "updated_at", Order: domain.SortDesc},
	})
	if err != nil {
		r.logger.Warn("list_sources_failed", "error", err)
		return []domain.Source{}
	}

	sources := make([]domain.Source, 0, len(objects))
	for _, obj := range objects {
		if !domain.IsPDFName(obj.Name) {
			continue
		}
		size := domain.UnknownSize
		if obj.Size != nil && *obj.Size > 0 {
			size = domain.FormatSize(*obj.Size)
		}
		sources = append(sources, domain.Source{
			ID:         r.newID(),
			Name:       domain.DisplayName(obj.Name),
			Size:       size,
			ObjectName: obj.Name,
			File:       domain.PlaceholderPDF(obj.Name),
		})
	}
	return sources
}

// Upload stores one PDF under a timestamp-prefixed name, overwriting on conflict.
func (r *SourceRepository) Upload(ctx context.Context, file domain.File, currentCount int) (*domain.Source, error) {
	if !file.IsPDF() {
		return nil, domain.WrapError(domain.ErrUnsupportedType, "upload source", fmt.Errorf("%s: content type %q", file.Name, file.ContentType))
	}
	if currentCount >= domain.MaxSources {
		return nil, domain.WrapError(domain.ErrSourceLimit, "upload source", fmt.Errorf("%d sources tracked", currentCount))
	}

	objectName := fmt.Sprintf("%d-%s", r.now().UnixMilli(), file.Name)

	body, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer body.Close()

	stored, err := r.storage.Upload(ctx, objectName, body, domain.UploadOptions{
		Upsert:      true,
		ContentType: domain.PDFContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s to storage: %w", file.Name, err)
	}

	r.logger.Debug("source_uploaded",
		"name", file.Name,
		"path", stored.Path,
		"public_url", r.storage.PublicURL(objectName),
	)

	return &domain.Source{
		ID:         r.newID(),
		Name:       file.Name,
		Size:       domain.FormatSize(file.Size),
		ObjectName: stored.Path,
		File:       file,
	}, nil
}

// SourceTracker holds the sources shown for the current session.
type SourceTracker struct {
	repo *SourceRepository

	mu      sync.Mutex
	sources []domain.Source
	loading bool
}

func NewSourceTracker(repo *SourceRepository) *SourceTracker {
	return &SourceTracker{repo: repo, sources: []domain.Source{}}
}

// Load replaces the tracked list with the remote listing once the session is usable.
func (t *SourceTracker) Load(ctx context.Context, session domain.SessionState) error {
	if !session.Usable() {
		return domain.WrapError(domain.ErrSessionNotReady, "load sources", errors.New("session is not usable"))
	}

	t.setLoading(true)
	defer t.setLoading(false)

	existing := t.repo.ListExisting(ctx)

	t.mu.Lock()
	t.sources = existing
	t.mu.Unlock()
	return nil
}

func (t *SourceTracker) setLoading(v bool) {
	t.mu.Lock()
	t.loading = v
	t.mu.Unlock()
}

func (t *SourceTracker) IsLoading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

func (t *SourceTracker) Sources() []domain.Source {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.sources)
}

func (t *SourceTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sources)
}

func (t *SourceTracker) Add(sources ...domain.Source) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sources = append(t.sources, sources...)
}

// Remove drops a source from the local view only; the stored object is kept.
func (t *SourceTracker) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	before := len(t.sources)
	t.sources = slices.DeleteFunc(t.sources, func(s domain.Source) bool {
		return s.ID == id
	})
	return len(t.sources) != before
}
