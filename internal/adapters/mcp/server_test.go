package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

type notebookFake struct {
	askErr    error
	refreshed int
	uploaded  []domain.File
	result    domain.UploadBatchResult
}

func (f *notebookFake) Start(context.Context) domain.SessionState { return domain.SessionState{Ready: true} }
func (f *notebookFake) Session() domain.SessionState              { return domain.SessionState{Ready: true} }

func (f *notebookFake) Sources() ports.SourcesView {
	return ports.SourcesView{Sources: []domain.Source{{ID: "s1", Name: "a.pdf", Size: "0.50 MB"}}, Count: 1, Limit: domain.MaxSources}
}

func (f *notebookFake) Upload(_ context.Context, files []domain.File) (domain.UploadBatchResult, error) {
	f.uploaded = files
	return f.result, nil
}

func (f *notebookFake) RemoveSource(string) bool { return false }
func (f *notebookFake) Chat() ports.ChatView     { return ports.ChatView{} }

func (f *notebookFake) Ask(_ context.Context, text string) (domain.ChatMessage, error) {
	if f.askErr != nil {
		return domain.ChatMessage{}, f.askErr
	}
	return domain.ChatMessage{Content: "reply: " + text, Sender: domain.SenderAssistant}, nil
}

func (f *notebookFake) ChatHistory(context.Context) (json.RawMessage, error) { return nil, nil }

func (f *notebookFake) Summary(context.Context) ports.SummaryView {
	return ports.SummaryView{Summary: &domain.Summary{Summary: "cached summary"}}
}

func (f *notebookFake) RefreshSummary(context.Context) ports.SummaryView {
	f.refreshed++
	return ports.SummaryView{Error: "Failed to fetch summary"}
}

func (f *notebookFake) ProcessDocuments(context.Context) (json.RawMessage, error) { return nil, nil }

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected tool result content")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	if NewServer(NewTools(&notebookFake{}, nil, nil), "test") == nil {
		t.Fatalf("expected server")
	}
}

func TestListSourcesReturnsJSONView(t *testing.T) {
	tools := NewTools(&notebookFake{}, nil, nil)
	res, err := tools.ListSources(context.Background(), callRequest("list_sources", nil))
	if err != nil {
		t.Fatalf("ListSources() error = %v", err)
	}
	var view ports.SourcesView
	if err := json.Unmarshal([]byte(resultText(t, res)), &view); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if view.Count != 1 || view.Sources[0].Name != "a.pdf" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestAskNotebook(t *testing.T) {
	nb := &notebookFake{}
	tools := NewTools(nb, nil, nil)

	res, err := tools.AskNotebook(context.Background(), callRequest("ask_notebook", map[string]any{"question": "why?"}))
	if err != nil {
		t.Fatalf("AskNotebook() error = %v", err)
	}
	if res.IsError || resultText(t, res) != "reply: why?" {
		t.Fatalf("unexpected ask result %+v", res)
	}

	res, _ = tools.AskNotebook(context.Background(), callRequest("ask_notebook", map[string]any{}))
	if !res.IsError {
		t.Fatalf("expected missing question to be a tool error")
	}

	nb.askErr = domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("message is empty"))
	res, _ = tools.AskNotebook(context.Background(), callRequest("ask_notebook", map[string]any{"question": " "}))
	if !res.IsError {
		t.Fatalf("expected ask error to be a tool error")
	}
}

func TestGetSummaryHonoursRefresh(t *testing.T) {
	nb := &notebookFake{}
	tools := NewTools(nb, nil, nil)

	res, _ := tools.GetSummary(context.Background(), callRequest("get_summary", nil))
	if resultText(t, res) != "cached summary" {
		t.Fatalf("unexpected summary %q", resultText(t, res))
	}

	res, _ = tools.GetSummary(context.Background(), callRequest("get_summary", map[string]any{"refresh": true}))
	if !res.IsError || nb.refreshed != 1 {
		t.Fatalf("expected refresh error result, refreshed=%d", nb.refreshed)
	}
	if !strings.Contains(resultText(t, res), "Failed to fetch summary") {
		t.Fatalf("unexpected refresh text %q", resultText(t, res))
	}
}

func TestUploadPDF(t *testing.T) {
	nb := &notebookFake{result: domain.UploadBatchResult{
		Succeeded: []domain.Source{{ID: "s2", Name: "b.pdf"}},
		Message:   domain.UploadSucceededText(1),
	}}
	loaded := ""
	tools := NewTools(nb, func(path string) (domain.File, error) {
		loaded = path
		return domain.NewBytesFile("b.pdf", domain.PDFContentType, []byte("%PDF")), nil
	}, nil)

	res, err := tools.UploadPDF(context.Background(), callRequest("upload_pdf", map[string]any{"path": " /tmp/b.pdf "}))
	if err != nil {
		t.Fatalf("UploadPDF() error = %v", err)
	}
	if loaded != "/tmp/b.pdf" || len(nb.uploaded) != 1 {
		t.Fatalf("expected trimmed path load and one upload, got %q %d", loaded, len(nb.uploaded))
	}
	if res.IsError || resultText(t, res) != "Successfully uploaded 1 file(s) to storage." {
		t.Fatalf("unexpected upload result %+v", res)
	}

	nb.result = domain.UploadBatchResult{Skipped: 1}
	res, _ = tools.UploadPDF(context.Background(), callRequest("upload_pdf", map[string]any{"path": "/tmp/b.pdf"}))
	if !res.IsError {
		t.Fatalf("expected skipped upload to be a tool error")
	}

	failing := NewTools(nb, func(string) (domain.File, error) { return domain.File{}, errors.New("no such file") }, nil)
	res, _ = failing.UploadPDF(context.Background(), callRequest("upload_pdf", map[string]any{"path": "/missing.pdf"}))
	if !res.IsError {
		t.Fatalf("expected load failure to be a tool error")
	}
}
