package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <uploadId>",
	Short: "Ingest an uploaded batch into the vector store",
	Long: `Extract, chunk and embed every file of an upload.

Running process again after a partial failure retries only the files
that were not ingested.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	id := args[0]

	work := func(ctx context.Context, emit func(client.Event)) error {
		w, err := apiClient.Connect(ctx)
		if err != nil {
			return err
		}
		defer w.Close()

		// Join after starting so the replayed state belongs to this run.
		if _, err := apiClient.Process(ctx, id); err != nil {
			return fmt.Errorf("start processing: %w", err)
		}
		if err := w.Join(client.UploadTopic(id)); err != nil {
			return err
		}

		processingOnly := func(ev client.Event) {
			if !strings.HasPrefix(ev.Name, "upload") {
				emit(ev)
			}
		}
		return w.Run(ctx, followUntil(processingOnly, isProcessingTerminal))
	}

	if err := runWithProgress(cmd.Context(), "process "+id, work); err != nil {
		return err
	}

	job, err := apiClient.ProcessingStatus(cmd.Context(), id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(job)
	}
	fmt.Printf("Processing %s: %s (%d/%d files, %d chunks)\n",
		id, job.Status, job.ProcessedFiles, job.TotalFiles, job.TotalChunks)
	for _, r := range job.Results {
		line := fmt.Sprintf("  %-10s %s", r.Status, r.FileName)
		if r.Error != "" {
			line += "  error: " + r.Error
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
