package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	uploadID      string
	uploadProcess bool
	uploadMeta    []string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload training documents",
	Long: `Upload PDF, Markdown or plain text files as one batch.

The server reports byte progress while the files stream in. With --process
the batch is ingested into the vector store right after the upload.

Examples:
  fitplan upload program.pdf notes.md
  fitplan upload --process --meta author=coach ./docs/*.pdf
  fitplan upload --id spring-block block.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadID, "id", "", "upload id (generated if empty)")
	uploadCmd.Flags().BoolVarP(&uploadProcess, "process", "p", false, "ingest the files after uploading")
	uploadCmd.Flags().StringSliceVarP(&uploadMeta, "meta", "m", nil, "metadata key=value attached to every file")
}

func runUpload(cmd *cobra.Command, args []string) error {
	meta, err := parseMeta(uploadMeta)
	if err != nil {
		return err
	}
	for _, p := range args {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("file %s: %w", p, err)
		}
	}

	id := uploadID
	if id == "" {
		id = uuid.NewString()
	}

	stop := isUploadTerminal
	if uploadProcess {
		stop = isProcessingTerminal
	}

	var resp *client.UploadResponse
	work := func(ctx context.Context, emit func(client.Event)) error {
		w, err := apiClient.Connect(ctx)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Join(client.UploadTopic(id)); err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			r, err := apiClient.Upload(gctx, id, args, meta)
			if err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			resp = r
			if uploadProcess {
				if _, err := apiClient.Process(gctx, id); err != nil {
					return fmt.Errorf("start processing: %w", err)
				}
			}
			return nil
		})
		g.Go(func() error {
			return w.Run(gctx, followUntil(emit, stop))
		})
		return g.Wait()
	}

	if err := runWithProgress(cmd.Context(), "upload "+id, work); err != nil {
		return err
	}

	if uploadProcess {
		batch, err := apiClient.Files(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(batch)
		}
		fmt.Printf("Upload %s\n", id)
		printFiles(os.Stdout, batch.Files)
		return nil
	}

	if resp == nil {
		return nil
	}
	if jsonOut {
		return printJSON(resp)
	}
	fmt.Printf("Upload %s: %d files, %s\n", resp.UploadID, len(resp.Files), formatBytes(resp.TotalBytes))
	printFiles(os.Stdout, resp.Files)
	fmt.Printf("\nRun 'fitplan process %s' to ingest them.\n", resp.UploadID)
	return nil
}

func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid metadata %q (expected key=value)", kv)
		}
		meta[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return meta, nil
}
