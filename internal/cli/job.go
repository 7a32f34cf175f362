package cli

import (
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job <jobId>",
	Short: "Show a generation job",
	Long: `Show the state of a generation job. Completed jobs print their program.

Jobs are kept for a limited time after they finish; use 'fitplan plan'
for saved programs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.GenerationJob(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printGenerationResult(job)
	},
}
