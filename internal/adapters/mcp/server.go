package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
)

const serverName = "pdf-notebook"

// FileLoader turns a local path into an uploadable file.
type FileLoader func(path string) (domain.File, error)

type Tools struct {
	notebook ports.NotebookService
	load     FileLoader
	logger   *slog.Logger
}

func NewTools(notebook ports.NotebookService, load FileLoader, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{notebook: notebook, load: load, logger: logger}
}

// NewServer registers the notebook tools on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_sources",
		mcp.WithDescription("List the PDF sources tracked by the notebook"),
	), tools.ListSources)

	s.AddTool(mcp.NewTool("ask_notebook",
		mcp.WithDescription("Ask a question about the uploaded documents"),
		mcp.WithString("question", mcp.Required(), mcp.Description("Question to send to the notebook")),
	), tools.AskNotebook)

	s.AddTool(mcp.NewTool("get_summary",
		mcp.WithDescription("Return the summary of the uploaded documents"),
		mcp.WithBoolean("refresh", mcp.Description("Request a fresh summary instead of the cached one")),
	), tools.GetSummary)

	if tools.load != nil {
		s.AddTool(mcp.NewTool("upload_pdf",
			mcp.WithDescription("Upload a local PDF file into the notebook"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path of the PDF on this machine")),
		), tools.UploadPDF)
	}
	return s
}

func (t *Tools) ListSources(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view := t.notebook.Sources()
	raw, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (t *Tools) AskNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	msg, err := t.notebook.Ask(ctx, question)
	if err != nil {
		t.logger.Warn("mcp_ask_failed", "error", err)
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	return mcp.NewToolResultText(msg.Content), nil
}

func (t *Tools) GetSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var view ports.SummaryView
	if req.GetBool("refresh", false) {
		view = t.notebook.RefreshSummary(ctx)
	} else {
		view = t.notebook.Summary(ctx)
	}
	if view.Error != "" {
		return mcp.NewToolResultError(view.Error), nil
	}
	if view.Summary == nil {
		return mcp.NewToolResultText(""), nil
	}
	return mcp.NewToolResultText(view.Summary.Summary), nil
}

func (t *Tools) UploadPDF(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	file, err := t.load(strings.TrimSpace(path))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := t.notebook.Upload(ctx, []domain.File{file})
	if err != nil {
		return mcp.NewToolResultError(domain.DisplayMessage(err)), nil
	}
	switch result.Status() {
	case domain.UploadSuccess:
		return mcp.NewToolResultText(result.Message), nil
	case domain.UploadError:
		return mcp.NewToolResultError(domain.UploadFailedText), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s was not uploaded: only PDF files are accepted and at most %d sources are kept", file.Name, domain.MaxSources)), nil
	}
}
