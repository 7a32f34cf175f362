package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <planId>",
	Short: "Show a saved workout program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := apiClient.Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(plan)
		}

		printProgram(os.Stdout, plan.Program)
		fmt.Printf("\nPlan %s, created %s from %d files", plan.ID, plan.CreatedAt.Format("2006-01-02 15:04"), len(plan.FileIDs))
		if plan.Fallback {
			fmt.Print(" (fallback program)")
		}
		fmt.Println()
		return nil
	},
}
