// Package endpoints defines the HTTP endpoints of the paflow server and
// their matching CLI commands.
package endpoints

import (
	"github.com/payerops/paflow/internal/api"
	"github.com/payerops/paflow/internal/casestore"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	PostgresManager *casestore.DockerManager
	Tracker         *Tracker
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	if cfg.Tracker == nil {
		cfg.Tracker = NewTracker()
	}
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{PostgresManager: cfg.PostgresManager},

		// Case endpoints
		&SubmitCaseEndpoint{Tracker: cfg.Tracker},
		&GetCaseEndpoint{Tracker: cfg.Tracker},
		&CaseStatusEndpoint{Tracker: cfg.Tracker},
	}
}
