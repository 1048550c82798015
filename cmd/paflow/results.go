package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/api"
)

var resultsCmd = &cobra.Command{
	Use:   "results <case-id>",
	Short: "Fetch persisted results for a case",
	Long: `Fetch the persisted results for a case directly from the case store.

This reads the database without going through the server, so it works
whenever Postgres is reachable (running container or external DSN).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}
		mgr, err := getConfigManager(h)
		if err != nil {
			return err
		}

		store, err := openCaseStore(ctx, mgr.Get(), h, false)
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("case %s not found", args[0])
		}

		return api.Output(record)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}
