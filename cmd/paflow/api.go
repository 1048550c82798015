package main

import (
	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running paflow server via HTTP.

These commands require a running server (paflow serve).
Use --server to specify a custom server URL.

Examples:
  paflow api health                    # Check server health
  paflow api cases submit form.pdf     # Submit a case for processing
  paflow api cases get <case-id>       # Get case results
  paflow api cases status <case-id>    # Check processing progress`,
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Case management commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8170", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	// Cases as subcommand group
	casesCmd.AddCommand((&endpoints.SubmitCaseEndpoint{}).Command(getServerURL))
	casesCmd.AddCommand((&endpoints.GetCaseEndpoint{}).Command(getServerURL))
	casesCmd.AddCommand((&endpoints.CaseStatusEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(apiCmd)
}
