package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/pdf-notebook/internal/core/domain"
	"github.com/kirillkom/pdf-notebook/internal/core/ports"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/pdf-notebook/internal/infrastructure/files"
)

type opener func(cmd *cobra.Command) (*notebookApp, error)

func withNotebook(open opener, run func(cmd *cobra.Command, nb ports.NotebookService, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := open(cmd)
		if err != nil {
			return err
		}
		defer app.close()
		return run(cmd, app.notebook, args)
	}
}

func newSourcesCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List PDFs already stored for this notebook",
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, _ []string) error {
			if state := nb.Session(); !state.Usable() {
				return sessionError(state)
			}
			printSources(cmd.OutOrStdout(), nb.Sources())
			return nil
		}),
	}
}

func newUploadCmd(open opener) *cobra.Command {
	var showPages bool
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload local PDF files",
		Args:  cobra.MinimumNArgs(1),
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, args []string) error {
			selection, err := files.LoadAll(args)
			if err != nil {
				return err
			}
			if showPages {
				printPageCounts(cmd.OutOrStdout(), selection)
			}
			return upload(cmd.Context(), cmd.OutOrStdout(), nb, selection)
		}),
	}
	cmd.Flags().BoolVar(&showPages, "pages", false, "print the page count of each PDF before uploading")
	return cmd
}

func newAskCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question about the uploaded documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, args []string) error {
			msg, err := nb.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg.Content)
			return nil
		}),
	}
}

func newChatCmd(open opener) *cobra.Command {
	var transcript string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; /sources, /upload <path>, /remove <id>, /summary, /quit",
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, _ []string) error {
			out := cmd.OutOrStdout()
			for _, msg := range nb.Chat().Messages {
				printMessage(out, msg)
			}

			err := chatLoop(cmd.Context(), cmd.InOrStdin(), out, nb)
			if transcript != "" {
				if saveErr := xlsx.SaveTranscript(transcript, nb.Chat().Messages); saveErr != nil {
					return errors.Join(err, saveErr)
				}
				_, _ = fmt.Fprintf(out, "transcript saved to %s\n", transcript)
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&transcript, "transcript", "", "write the conversation to this .xlsx file on exit")
	return cmd
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, nb ports.NotebookService) error {
	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch command {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/sources":
			printSources(out, nb.Sources())
		case "/remove":
			if nb.RemoveSource(arg) {
				_, _ = fmt.Fprintf(out, "removed %s from this session (the stored file is kept)\n", arg)
			} else {
				_, _ = fmt.Fprintf(out, "no source with id %q\n", arg)
			}
		case "/upload":
			selection, err := files.LoadAll(strings.Fields(arg))
			if err != nil {
				_, _ = fmt.Fprintln(out, err)
				continue
			}
			if err := upload(ctx, out, nb, selection); err != nil {
				_, _ = fmt.Fprintln(out, domain.DisplayMessage(err))
			}
		case "/summary":
			printSummary(out, nb.Summary(ctx))
		default:
			msg, err := nb.Ask(ctx, line)
			if err != nil {
				_, _ = fmt.Fprintln(out, domain.DisplayMessage(err))
				continue
			}
			printMessage(out, msg)
		}
	}
}

func newSummaryCmd(open opener) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the summary of the uploaded documents",
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, _ []string) error {
			var view ports.SummaryView
			if refresh {
				view = nb.RefreshSummary(cmd.Context())
			} else {
				view = nb.Summary(cmd.Context())
			}
			if view.Error != "" {
				return errors.New(view.Error)
			}
			printSummary(cmd.OutOrStdout(), view)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "request a fresh summary")
	return cmd
}

func newProcessCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Ask the backend to index uploaded documents",
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, _ []string) error {
			result, err := nb.ProcessDocuments(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return nil
		}),
	}
}

func newHistoryCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the stored chat history",
		RunE: withNotebook(open, func(cmd *cobra.Command, nb ports.NotebookService, _ []string) error {
			history, err := nb.ChatHistory(cmd.Context())
			if err != nil {
				return errors.New(domain.DisplayMessage(err))
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(history))
			return nil
		}),
	}
}

func upload(ctx context.Context, out io.Writer, nb ports.NotebookService, selection []domain.File) error {
	result, err := nb.Upload(ctx, selection)
	if err != nil {
		return err
	}
	switch result.Status() {
	case domain.UploadSuccess:
		_, _ = fmt.Fprintln(out, result.Message)
		for _, src := range result.Succeeded {
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", src.ID, src.Name, src.Size)
		}
	case domain.UploadError:
		_, _ = fmt.Fprintln(out, domain.UploadFailedText)
	}
	if result.FailedCount > 0 && result.Status() == domain.UploadSuccess {
		_, _ = fmt.Fprintf(out, "failed: %d\n", result.FailedCount)
	}
	if result.Skipped > 0 {
		_, _ = fmt.Fprintf(out, "skipped: %d (not a PDF or source limit reached)\n", result.Skipped)
	}
	return nil
}

func printSources(out io.Writer, view ports.SourcesView) {
	if view.Count == 0 {
		_, _ = fmt.Fprintln(out, "no sources")
		return
	}
	for _, src := range view.Sources {
		_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", src.ID, src.Name, src.Size)
	}
	_, _ = fmt.Fprintf(out, "%d/%d sources\n", view.Count, view.Limit)
}

func printPageCounts(out io.Writer, selection []domain.File) {
	for _, f := range selection {
		if !f.IsPDF() {
			continue
		}
		pages, err := files.PageCount(f)
		if err != nil {
			_, _ = fmt.Fprintf(out, "%s\tpages=?\t%v\n", f.Name, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\tpages=%d\n", f.Name, pages)
	}
}

func printSummary(out io.Writer, view ports.SummaryView) {
	switch {
	case view.Error != "":
		_, _ = fmt.Fprintln(out, view.Error)
	case view.Summary == nil:
		_, _ = fmt.Fprintln(out, "no summary yet")
	default:
		_, _ = fmt.Fprintln(out, view.Summary.Summary)
	}
}

func printMessage(out io.Writer, msg domain.ChatMessage) {
	_, _ = fmt.Fprintf(out, "[%s] %s\n", msg.Sender, msg.Content)
}

func sessionError(state domain.SessionState) error {
	if state.Error != "" {
		return errors.New(state.Error)
	}
	return fmt.Errorf("notebook session is %s", state.Status())
}
