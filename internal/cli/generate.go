package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/raphaelgruber/fitplan/internal/models"
	"github.com/spf13/cobra"
)

var (
	genFiles     []string
	genGoal      string
	genLevel     string
	genDays      int
	genEquipment []string
	genTopK      int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a workout program from ingested files",
	Long: `Generate a structured workout program grounded in ingested documents.

Examples:
  fitplan generate --files 6f1c...,a93e... --goal "first pull-up" --level beginner
  fitplan generate --files 6f1c... --days 4 --equipment barbell,rack`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVarP(&genFiles, "files", "f", nil, "ids of ingested files to ground the program in (required)")
	generateCmd.Flags().StringVarP(&genGoal, "goal", "g", "", "training goal")
	generateCmd.Flags().StringVarP(&genLevel, "level", "l", "", "experience level (beginner, intermediate, advanced)")
	generateCmd.Flags().IntVarP(&genDays, "days", "d", 0, "training days per week")
	generateCmd.Flags().StringSliceVarP(&genEquipment, "equipment", "e", nil, "available equipment")
	generateCmd.Flags().IntVarP(&genTopK, "top-k", "k", 0, "number of document chunks to retrieve")
	_ = generateCmd.MarkFlagRequired("files")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	req := models.PlanRequest{
		FileIDs:     genFiles,
		Goal:        genGoal,
		Level:       genLevel,
		DaysPerWeek: genDays,
		Equipment:   genEquipment,
		TopK:        genTopK,
	}

	// Validation errors surface before any UI starts.
	resp, err := apiClient.Generate(cmd.Context(), req)
	if err != nil {
		return err
	}

	work := func(ctx context.Context, emit func(client.Event)) error {
		return apiClient.Watch(ctx, followUntil(emit, client.Event.Terminal), client.GenerationTopic(resp.JobID))
	}
	if err := runWithProgress(cmd.Context(), "generate "+resp.JobID, work); err != nil {
		return err
	}

	job, err := apiClient.GenerationJob(cmd.Context(), resp.JobID)
	if err != nil {
		return err
	}
	return printGenerationResult(job)
}

func printGenerationResult(job *models.GenerationJob) error {
	if jsonOut {
		return printJSON(job)
	}
	if !job.Terminal() {
		fmt.Printf("Job %s is %s (%s, %d%%). Check again with 'fitplan job %s'.\n",
			job.ID, job.Status, job.Step, job.Progress, job.ID)
		return nil
	}
	if job.Status == models.GenerationStatusFailed {
		return fmt.Errorf("generation %s failed: %s", job.ID, job.Error)
	}
	if job.Result == nil {
		return fmt.Errorf("generation %s completed without a program", job.ID)
	}

	printProgram(os.Stdout, *job.Result)
	if job.Fallback {
		fmt.Printf("\nNote: %s\n", job.Message)
	}
	if job.PlanID != "" {
		fmt.Printf("\nSaved as plan %s\n", job.PlanID)
	}
	return nil
}
