package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statusCmd = &cobra.Command{
	Use:   "status <uploadId>",
	Short: "Show upload, processing and file state of a batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

type batchStatus struct {
	Upload     *models.UploadJob     `json:"upload,omitempty"`
	Processing *models.ProcessingJob `json:"processing,omitempty"`
	Files      *models.FileBatch     `json:"files,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	id := args[0]
	var st batchStatus

	// Upload jobs expire after retention while the batch and processing
	// state may remain, so a 404 on one part is not fatal.
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		job, err := apiClient.UploadStatus(ctx, id)
		if err != nil && !client.IsNotFound(err) {
			return err
		}
		st.Upload = job
		return nil
	})
	g.Go(func() error {
		job, err := apiClient.ProcessingStatus(ctx, id)
		if err != nil && !client.IsNotFound(err) {
			return err
		}
		st.Processing = job
		return nil
	})
	g.Go(func() error {
		batch, err := apiClient.Files(ctx, id)
		if err != nil && !client.IsNotFound(err) {
			return err
		}
		st.Files = batch
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if st.Upload == nil && st.Processing == nil && st.Files == nil {
		return fmt.Errorf("upload %s not found", id)
	}
	if jsonOut {
		return printJSON(st)
	}

	fmt.Printf("Upload %s\n", id)
	if u := st.Upload; u != nil {
		fmt.Printf("  upload:     %s %d%% (%s)\n", u.Status, u.Percent, formatBytes(u.BytesReceived))
		if u.Error != "" {
			fmt.Printf("              %s\n", u.Error)
		}
	}
	if p := st.Processing; p != nil {
		fmt.Printf("  processing: %s %d%% (%d/%d files, %d errors, %d chunks)\n",
			p.Status, p.Percent, p.ProcessedFiles, p.TotalFiles, p.ErrorFiles, p.TotalChunks)
		if p.Error != "" {
			fmt.Printf("              %s\n", p.Error)
		}
	} else {
		fmt.Println("  processing: not started")
	}
	if st.Files != nil {
		fmt.Println("  files:")
		printFiles(os.Stdout, st.Files.Files)
	}
	return nil
}
