package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/kursadbilgin/extraction-orchestrator/internal/app"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/service"
	"github.com/spf13/cobra"
)

const watchInterval = 500 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var exportPath string
	var payees []string

	cmd := &cobra.Command{
		Use:   "run <file.pdf>...",
		Short: "Upload statements, wait for extraction and print the payee groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := ctx.ensureCore()
			if err != nil {
				return err
			}
			defer core.Close()
			core.Start(cmd.Context())

			return runBatch(cmd.Context(), cmd.OutOrStdout(), core, args, payees, exportPath)
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "Write the consolidated export to this path")
	cmd.Flags().StringArrayVar(&payees, "payee", nil, "Restrict the export to this payee (repeatable)")

	return cmd
}

func runBatch(ctx context.Context, out io.Writer, core *app.Core, paths []string, payees []string, exportPath string) error {
	docs, closeAll, err := openDocuments(paths)
	if err != nil {
		return err
	}
	defer closeAll()

	batchID, err := core.Orchestrator.Submit(ctx, docs)
	if err != nil {
		return explain(ctx, core, err)
	}
	fmt.Fprintf(out, "Batch %s submitted (%d files)\n", batchID, len(docs))

	view, err := watch(ctx, out, core.Orchestrator)
	if err != nil {
		return err
	}
	if view.Failure != nil {
		if view.Failure.Detail == "" {
			return errors.New(view.Failure.Message)
		}
		return fmt.Errorf("%s: %s", view.Failure.Message, view.Failure.Detail)
	}
	if view.Stage != service.StageSuccess {
		return explain(ctx, core, errors.New("batch abandoned"))
	}

	presenter := core.Presenter
	for _, payee := range payees {
		if err := presenter.Toggle(payee); err != nil {
			return fmt.Errorf("payee %q: %w", payee, err)
		}
	}
	fmt.Fprintln(out, renderGroups(presenter.View()))

	if exportPath == "" {
		return nil
	}

	f, err := os.Create(exportPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	written, err := core.Orchestrator.DownloadExport(ctx, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(exportPath)
		return explain(ctx, core, err)
	}
	fmt.Fprintf(out, "%s %s (%d bytes)\n", color.New(color.FgGreen).Sprint("Exported"), exportPath, written)
	return nil
}

// watch prints counter changes until the batch leaves the processing stage
// and consolidation is over.
func watch(ctx context.Context, out io.Writer, o *service.Orchestrator) (service.View, error) {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	last := ""
	for {
		view := o.View()
		if line := progressLine(view); line != last {
			fmt.Fprintln(out, line)
			last = line
		}
		if finished(view) {
			return view, nil
		}

		select {
		case <-ctx.Done():
			o.Reset()
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

func finished(view service.View) bool {
	switch view.Stage {
	case service.StageIdle:
		return true
	case service.StageSuccess:
		return !view.Synthesizing
	}
	return false
}

func progressLine(view service.View) string {
	if view.Stage == service.StageProcessing && view.BatchID == "" {
		return "Uploading..."
	}
	line := fmt.Sprintf("%5.1f%%  %s %d  %s %d  %s %d  %s %d",
		view.Progress,
		color.New(color.FgGreen).Sprint("completed"), view.Completed,
		color.New(color.FgRed).Sprint("errors"), view.Errored,
		color.New(color.FgYellow).Sprint("processing"), view.Processing,
		color.New(color.FgBlue).Sprint("pending"), view.Pending,
	)
	if view.Synthesizing {
		line += "  consolidating..."
	}
	return line
}

// explain adds the recovery address when err came from an expired session.
func explain(ctx context.Context, core *app.Core, err error) error {
	state, stateErr := core.Guardian.State(ctx)
	if stateErr != nil || state != domain.SessionExpired {
		return err
	}
	return fmt.Errorf("%w: session expired, recover at %s", err, core.Guardian.RecoveryURL("/"))
}

func openDocuments(paths []string) ([]domain.Document, func(), error) {
	docs := make([]domain.Document, 0, len(paths))
	files := make([]*os.File, 0, len(paths))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		files = append(files, f)

		doc := domain.Document{Filename: filepath.Base(path), Content: f}
		if doc.IsPDF() {
			doc.ContentType = domain.ContentTypePDF
		}
		docs = append(docs, doc)
	}
	return docs, closeAll, nil
}
