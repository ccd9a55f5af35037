package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

type historyFetcher interface {
	FetchChatHistory(ctx context.Context) (json.RawMessage, error)
}

type NotebookDeps struct {
	Session   *SessionBootstrapper
	Sources   *SourceTracker
	Uploader  *UploadOrchestrator
	Chat      *ChatController
	Summary   *SummaryController
	Processor *DocumentProcessor
	History   historyFetcher
}

// Notebook wires the controllers together the way the notebook page does:
// session first, then existing sources, then independent upload and chat flows.
type Notebook struct {
	deps NotebookDeps

	announceExisting bool
}

var _ ports.NotebookService = (*Notebook)(nil)

func NewNotebook(deps NotebookDeps, announceExisting bool) *Notebook {
	return &Notebook{deps: deps, announceExisting: announceExisting}
}

func (n *Notebook) Start(ctx context.Context) domain.SessionState {
	state := n.deps.Session.Bootstrap(ctx)
	if !state.Usable() {
		return state
	}
	if err := n.deps.Sources.Load(ctx, state); err != nil {
		return state
	}
	if n.announceExisting {
		n.deps.Chat.AddWelcomeMessage(n.deps.Sources.Count())
	}
	return state
}

func (n *Notebook) Session() domain.SessionState {
	return n.deps.Session.State()
}

func (n *Notebook) Sources() ports.SourcesView {
	sources := n.deps.Sources.Sources()
	return ports.SourcesView{
		Sources:   sources,
		Count:     len(sources),
		Limit:     domain.MaxSources,
		Loading:   n.deps.Sources.IsLoading(),
		Uploading: n.Busy(),
	}
}

// Upload runs one batch; the outcome is also posted into the chat log.
func (n *Notebook) Upload(ctx context.Context, files []domain.File) (domain.UploadBatchResult, error) {
	if state := n.Session(); !state.Usable() {
		return domain.UploadBatchResult{}, domain.WrapError(domain.ErrSessionNotReady, "upload", errors.New(string(state.Status())))
	}

	result := n.deps.Uploader.UploadFiles(ctx, files, n.deps.Sources.Count(), UploadCallbacks{
		OnSuccess: func(sources []domain.Source, message string) {
			n.deps.Sources.Add(sources...)
			n.deps.Chat.AddErrorMessage(message)
		},
		OnError: func(message string) {
			n.deps.Chat.AddErrorMessage(message)
		},
	})
	return result, nil
}

func (n *Notebook) RemoveSource(id string) bool {
	return n.deps.Sources.Remove(id)
}

func (n *Notebook) Chat() ports.ChatView {
	return ports.ChatView{
		Messages: n.deps.Chat.Messages(),
		Loading:  n.deps.Chat.IsLoading(),
	}
}

func (n *Notebook) Ask(ctx context.Context, text string) (domain.ChatMessage, error) {
	return n.deps.Chat.Ask(ctx, text)
}

func (n *Notebook) ChatHistory(ctx context.Context) (json.RawMessage, error) {
	history, err := n.deps.History.FetchChatHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chat history: %w", err)
	}
	return history, nil
}

func (n *Notebook) Summary(ctx context.Context) ports.SummaryView {
	return n.deps.Summary.Fetch(ctx, true)
}

func (n *Notebook) RefreshSummary(ctx context.Context) ports.SummaryView {
	return n.deps.Summary.Refetch(ctx)
}

func (n *Notebook) ProcessDocuments(ctx context.Context) (json.RawMessage, error) {
	return n.deps.Processor.Process(ctx)
}

// Busy mirrors the sidebar's disabled state: an upload batch or processing run is active.
func (n *Notebook) Busy() bool {
	return n.deps.Uploader.IsUploading() || n.deps.Processor.IsProcessing()
}

func (n *Notebook) Close() {
	n.deps.Session.Close()
}
