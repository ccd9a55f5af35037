package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kirillkom/pdf-notebook/internal/bootstrap"
	"github.com/kirillkom/pdf-notebook/internal/config"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/observability/logging"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(loadApp).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// notebookApp is one started notebook plus its release hook.
type notebookApp struct {
	notebook ports.NotebookService
	close    func()
}

type appLoader func(ctx context.Context, configPath string) (*notebookApp, error)

func newRootCmd(load appLoader) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "notebook",
		Short:         "Work with a PDF notebook from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("NOTEBOOK_CONFIG"), "YAML config file")

	open := func(cmd *cobra.Command) (*notebookApp, error) {
		return load(cmd.Context(), configPath)
	}
	root.AddCommand(newSourcesCmd(open))
	root.AddCommand(newUploadCmd(open))
	root.AddCommand(newAskCmd(open))
	root.AddCommand(newChatCmd(open))
	root.AddCommand(newSummaryCmd(open))
	root.AddCommand(newProcessCmd(open))
	root.AddCommand(newHistoryCmd(open))
	return root
}

func loadApp(ctx context.Context, configPath string) (*notebookApp, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.NewCLILogger(cfg.LogLevel)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	state := app.Notebook.Start(ctx)
	if state.Error != "" {
		logger.Warn("notebook_session_unusable", "error", state.Error)
	}
	return &notebookApp{notebook: app.Notebook, close: app.Close}, nil
}
