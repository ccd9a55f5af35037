package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/pdf-notebook/internal/adapters/mcp"
	"github.com/kirillkom/pdf-notebook/internal/bootstrap"
	"github.com/kirillkom/pdf-notebook/internal/config"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/files"
	"github.com/kirillkom/pdf-notebook/internal/observability/logging"
)

const version = "0.1.0"

// Stdout carries the MCP protocol, so logs go to stderr.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.NewCLILogger(cfg.LogLevel)

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer app.Close()

	state := app.Notebook.Start(ctx)
	if !state.Usable() {
		logger.Warn("notebook_session_unusable", "status", string(state.Status()), "error", state.Error)
	}

	tools := mcpadapter.NewTools(app.Notebook, files.Load, logger)
	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		app.Close()
		os.Exit(1)
	}
}
