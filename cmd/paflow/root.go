package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/api"
	"github.com/payerops/paflow/internal/config"
	"github.com/payerops/paflow/internal/home"
	"github.com/payerops/paflow/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "paflow",
	Short: "Prior authorization determination pipeline",
	Long: `Paflow processes prior authorization requests end to end: uploaded
referral documents are rendered to page images, patient, physician, and
clinical information is extracted with a vision model, the matching payor
policy is located and resolved to text, and a final determination is
generated against the policy criteria.

Results are persisted per case in Postgres and can be fetched by case ID.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.paflow/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "paflow home directory (default: ~/.paflow)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// getConfigManager loads configuration, preferring the --config flag, then
// the home directory config file, then defaults.
func getConfigManager(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}
