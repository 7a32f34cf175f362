// Package cli provides the command-line interface for fitplan.
package cli

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/fitplan/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	jsonOut   bool
	noUI      bool

	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fitplan",
	Short: "Turn training documents into workout programs",
	Long: `fitplan uploads training documents (PDF, Markdown, plain text) to a fitplan
server, ingests them into the vector store and generates structured workout
programs grounded in them.

Long-running steps stream live progress from the server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $FITPLAN_SERVER_URL or http://localhost:8484)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noUI, "no-ui", false, "print progress as plain lines")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(watchCmd)
}

func printJSON(v any) error {
	enc := jsonEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
