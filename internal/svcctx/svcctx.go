// Package svcctx provides service context for dependency injection via
// context. This package is separate from server to avoid import cycles with
// commands and endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/config"
	"github.com/payerops/paflow/internal/home"
	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/pipeline"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Logger        *slog.Logger
	ConfigManager *config.Manager
	Home          *home.Dir
	LLM           llm.Client
	CaseStore     casestore.Store
	Pipeline      *pipeline.Pipeline
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}

// LLMFrom extracts the chat client from context.
func LLMFrom(ctx context.Context) llm.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.LLM
	}
	return nil
}

// CaseStoreFrom extracts the case store from context.
func CaseStoreFrom(ctx context.Context) casestore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.CaseStore
	}
	return nil
}

// PipelineFrom extracts the case pipeline from context.
func PipelineFrom(ctx context.Context) *pipeline.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}
