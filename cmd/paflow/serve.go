package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/payerops/paflow/internal/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the paflow server",
	Long: `Start the paflow HTTP server.

This starts the HTTP API and, unless an external database is configured,
the Postgres container. When the server shuts down (via Ctrl+C or
SIGTERM), the container is also stopped.

The server provides:
  /health                 - Basic server health check
  /ready                  - Readiness check (includes case store)
  /api/cases              - Submit case documents (multipart POST)
  /api/cases/{id}         - Case results
  /api/cases/{id}/status  - Case processing status

Examples:
  paflow serve                          # Start on the configured address
  paflow serve --listen 0.0.0.0:8170    # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := getHome()
		if err != nil {
			return err
		}

		mgr, err := getConfigManager(h)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		srv, err := server.New(server.Config{
			Listen:        serveListen,
			ConfigManager: mgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config)")

	rootCmd.AddCommand(serveCmd)
}
