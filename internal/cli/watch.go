package cli

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/spf13/cobra"
)

var watchProcessing bool

var watchCmd = &cobra.Command{
	Use:   "watch <upload|generation> <id>",
	Short: "Follow the live events of a job",
	Long: `Follow the events of an upload or a generation job. The current state
is replayed on join, so watching a finished job prints its final event
and exits.

An upload topic also carries the processing events of its batch; use
--processing to keep following until ingestion ends.`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"upload", "generation"},
	RunE:      runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchProcessing, "processing", false, "follow an upload until its processing ends")
}

func runWatch(cmd *cobra.Command, args []string) error {
	var topic client.Topic
	switch args[0] {
	case "upload":
		topic = client.UploadTopic(args[1])
	case "generation":
		topic = client.GenerationTopic(args[1])
	default:
		return fmt.Errorf("unknown job kind %q (expected upload or generation)", args[0])
	}

	stop := client.Event.Terminal
	if watchProcessing && topic.Kind == "upload" {
		stop = isProcessingTerminal
	}

	if jsonOut {
		return apiClient.Watch(cmd.Context(), func(ev client.Event) error {
			if err := printJSON(ev); err != nil {
				return err
			}
			if stop(ev) {
				return client.ErrStopWatch
			}
			return nil
		}, topic)
	}

	work := func(ctx context.Context, emit func(client.Event)) error {
		return apiClient.Watch(ctx, followUntil(emit, stop), topic)
	}
	return runWithProgress(cmd.Context(), args[0]+" "+args[1], work)
}
