package ports

import (
	"context"
	"encoding/json"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
)

// SummaryView is the read model of the summary panel.
type SummaryView struct {
	Summary  *domain.Summary `json:"summary,omitempty"`
	Error    string          `json:"error,omitempty"`
	Loading  bool            `json:"loading"`
	Fetching bool            `json:"fetching"`
}

// SourcesView is the read model of the sources sidebar.
type SourcesView struct {
	Sources   []domain.Source `json:"sources"`
	Count     int             `json:"count"`
	Limit     int             `json:"limit"`
	Loading   bool            `json:"loading"`
	Uploading bool            `json:"uploading"`
}

// ChatView is the read model of the chat area.
type ChatView struct {
	Messages []domain.ChatMessage `json:"messages"`
	Loading  bool                 `json:"loading"`
}

// NotebookService is the inbound contract consumed by every view surface.
type NotebookService interface {
	Start(ctx context.Context) domain.SessionState
	Session() domain.SessionState

	Sources() SourcesView
	Upload(ctx context.Context, files []domain.File) (domain.UploadBatchResult, error)
	RemoveSource(id string) bool

	Chat() ChatView
	Ask(ctx context.Context, text string) (domain.ChatMessage, error)
	ChatHistory(ctx context.Context) (json.RawMessage, error)

	Summary(ctx context.Context) SummaryView
	RefreshSummary(ctx context.Context) SummaryView

	ProcessDocuments(ctx context.Context) (json.RawMessage, error)
}
