package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/casestore"
)

var postgresCmd = &cobra.Command{
	Use:   "postgres",
	Short: "Manage the Postgres container",
	Long: `Manage the case store Postgres container lifecycle.

Postgres holds the persisted case records. The database runs in a
Docker container with data persisted to ~/.paflow/postgres/.

Examples:
  paflow postgres start   # Start the Postgres container
  paflow postgres stop    # Stop the container (data preserved)
  paflow postgres status  # Check container status
  paflow postgres logs    # View container logs`,
}

var postgresStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Postgres container",
	Long: `Start the Postgres container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Data is persisted to ~/.paflow/postgres/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting Postgres...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start postgres: %w", err)
		}

		fmt.Printf("Postgres is running (%s)\n", mgr.DSN())
		return nil
	},
}

var postgresStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the Postgres container",
	Long: `Stop the Postgres container.

This stops the container but preserves data. Use 'paflow postgres start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping Postgres...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop postgres: %w", err)
		}

		fmt.Println("Postgres stopped")
		return nil
	},
}

var postgresStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show Postgres container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case casestore.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("DSN: %s\n", mgr.DSN())
		case casestore.StatusStopped:
			fmt.Printf("Status: %s (use 'paflow postgres start' to start)\n", status)
		case casestore.StatusNotFound:
			fmt.Printf("Status: %s (use 'paflow postgres start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var pgLogsTail string

var postgresLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show Postgres container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, pgLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var postgresRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the Postgres container",
	Long: `Remove the Postgres container.

This stops and removes the container. Data in ~/.paflow/postgres/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing Postgres container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Postgres container removed (data preserved)")
		return nil
	},
}

var postgresWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for Postgres to be ready",
	Long: `Wait for Postgres to accept connections.

This is useful in scripts to ensure the case store is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getPostgresManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for Postgres (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("postgres not ready: %w", err)
		}

		fmt.Println("Postgres is ready")
		return nil
	},
}

func init() {
	postgresCmd.AddCommand(postgresStartCmd)
	postgresCmd.AddCommand(postgresStopCmd)
	postgresCmd.AddCommand(postgresStatusCmd)
	postgresCmd.AddCommand(postgresLogsCmd)
	postgresCmd.AddCommand(postgresRemoveCmd)
	postgresCmd.AddCommand(postgresWaitCmd)

	postgresLogsCmd.Flags().StringVar(&pgLogsTail, "tail", "100", "Number of lines to show from the end")
	postgresWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for Postgres")

	rootCmd.AddCommand(postgresCmd)
}

// getPostgresManager creates a DockerManager with the configured settings.
func getPostgresManager() (*casestore.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	mgr, err := getConfigManager(h)
	if err != nil {
		return nil, err
	}
	return casestore.NewDockerManager(mgr.Get().ToDockerConfig(h.PostgresDataPath()))
}
