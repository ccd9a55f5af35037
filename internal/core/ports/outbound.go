package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

// Subscription is returned by listener registrations and must be released by its owner.
type Subscription interface {
	Unsubscribe()
}

// IdentityService resolves and creates anonymous identities.
type IdentityService interface {
	CurrentSession(ctx context.Context) (*domain.Identity, error)
	SignInAnonymously(ctx context.Context) error
	OnAuthStateChange(listener func(domain.AuthEvent, *domain.Identity)) Subscription
}

// TokenSource yields the bearer token that scopes storage access to the current identity.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// CredentialStore persists the anonymous identity across restarts.
type CredentialStore interface {
	Load(ctx context.Context) (*domain.Identity, error)
	Save(ctx context.Context, identity domain.Identity) error
	Clear(ctx context.Context) error
}

// ObjectStorage lists and stores PDF objects in the notebook bucket.
type ObjectStorage interface {
	List(ctx context.Context, prefix string, opts domain.ListOptions) ([]domain.StoredObject, error)
	Upload(ctx context.Context, objectName string, body io.Reader, opts domain.UploadOptions) (domain.UploadedObject, error)
	PublicURL(objectName string) string
}

// ChatCompleter sends one user message to the backend.
type ChatCompleter interface {
	ProcessMessage(ctx context.Context, userMessage string) (*domain.BotReply, error)
}

// SummaryFetcher loads the document summary.
type SummaryFetcher interface {
	FetchSummary(ctx context.Context) (*domain.Summary, error)
}

// DocumentProcessingAPI triggers backend indexing of uploaded documents.
type DocumentProcessingAPI interface {
	ProcessDocuments(ctx context.Context) (json.RawMessage, error)
}

// NotebookAPI is the backend REST surface.
type NotebookAPI interface {
	ChatCompleter
	SummaryFetcher
	DocumentProcessingAPI
	FetchChatHistory(ctx context.Context) (json.RawMessage, error)
}

// UploadEventPublisher announces stored documents.
type UploadEventPublisher interface {
	PublishDocumentsUploaded(ctx context.Context, event domain.DocumentsUploadedEvent) error
}

// UploadEventSubscriber consumes document upload announcements until ctx is done.
type UploadEventSubscriber interface {
	SubscribeDocumentsUploaded(ctx context.Context, handler func(context.Context, domain.DocumentsUploadedEvent) error) error
}

// NotebookMetrics observes controller outcomes.
type NotebookMetrics interface {
	ObserveUploadBatch(succeeded, failed int, duration time.Duration)
	ObserveChat(err error, duration time.Duration)
	ObserveSummary(err error, duration time.Duration)
	ObserveProcessing(err error, duration time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) ObserveUploadBatch(int, int, time.Duration) {}
func (NopMetrics) ObserveChat(error, time.Duration)           {}
func (NopMetrics) ObserveSummary(error, time.Duration)        {}
func (NopMetrics) ObserveProcessing(error, time.Duration)     {}
