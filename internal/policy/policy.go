// Package policy locates the prior authorization policy matching a case and
// resolves it to text. Location runs an LLM query expansion over the
// extracted clinical record, then searches the policy index; resolution
// downloads the matched document and extracts its text.
package policy

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/payerops/paflow/internal/blob"
	"github.com/payerops/paflow/internal/docintel"
	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/prompts"
	"github.com/payerops/paflow/internal/records"
	"github.com/payerops/paflow/internal/search"
)

// Sentinel locations returned by Locate instead of errors. Downstream gates
// on these values rather than on error handling.
const (
	NoResultsFound    = "No results found"
	ErrLocatingPolicy = "Error locating policy"
)

// Located reports whether a location value is a real policy path rather
// than a sentinel.
func Located(location string) bool {
	return location != "" && location != NoResultsFound && location != ErrLocatingPolicy
}

// Searcher is the policy index query surface Locator depends on.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Document, error)
}

// Locator finds the policy document matching a clinical record.
type Locator struct {
	client    llm.Client
	prompts   *prompts.Store
	searcher  Searcher
	logger    *slog.Logger
	maxTokens int
	sampling  llm.SamplingParams
}

// NewLocator creates a Locator.
func NewLocator(client llm.Client, store *prompts.Store, searcher Searcher, logger *slog.Logger, maxTokens int, sampling llm.SamplingParams) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Locator{
		client:    client,
		prompts:   store,
		searcher:  searcher,
		logger:    logger,
		maxTokens: maxTokens,
		sampling:  sampling,
	}
}

// LocateOutcome carries the located policy path plus the query expansion
// conversation recorded with the case.
type LocateOutcome struct {
	Location       string
	OptimizedQuery string
	History        []llm.Message
}

// Locate expands the clinical record into an optimized search query, runs it
// against the policy index, and returns the top hit's document path. All
// failures map to sentinel locations; Locate never returns an error.
func (l *Locator) Locate(ctx context.Context, clinical *records.ClinicalInformation) *LocateOutcome {
	outcome := &LocateOutcome{Location: ErrLocatingPolicy}

	system, err := l.prompts.Static(prompts.QueryExpansionSystem)
	if err != nil {
		l.logger.Error("failed to load query expansion prompt", "error", err)
		return outcome
	}
	user, err := l.prompts.QueryExpansion(clinical)
	if err != nil {
		l.logger.Error("failed to build query expansion prompt", "error", err)
		return outcome
	}

	l.logger.Info("expanding query and searching for policy")
	res, err := l.client.Chat(ctx, &llm.ChatRequest{
		System:         system,
		Prompt:         user,
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      l.maxTokens,
		Sampling:       l.sampling,
	})
	if err != nil || !res.Ok() {
		l.logger.Error("query expansion failed", "error", err)
		return outcome
	}
	outcome.History = res.History

	var expanded struct {
		OptimizedQuery string `json:"optimized_query"`
	}
	if err := json.Unmarshal(res.ParsedJSON, &expanded); err != nil || expanded.OptimizedQuery == "" {
		l.logger.Error("query expansion returned no optimized_query", "error", err)
		return outcome
	}
	outcome.OptimizedQuery = expanded.OptimizedQuery

	docs, err := l.searcher.Search(ctx, expanded.OptimizedQuery)
	if err != nil {
		l.logger.Error("policy search failed", "error", err)
		return outcome
	}
	if len(docs) == 0 {
		l.logger.Warn("no policy results found", "query", expanded.OptimizedQuery)
		outcome.Location = NoResultsFound
		return outcome
	}

	outcome.Location = docs[0].ParentPath
	l.logger.Info("policy located", "location", outcome.Location, "score", docs[0].Score)
	return outcome
}

// Downloader is the blob store surface Resolver depends on.
type Downloader interface {
	DownloadToBytes(ctx context.Context, blobPath string) ([]byte, error)
}

// Analyzer is the document analysis surface Resolver depends on.
type Analyzer interface {
	Analyze(ctx context.Context, document []byte, modelID string) (*docintel.Result, error)
}

// Resolver turns a located policy path into policy text.
type Resolver struct {
	blobs    Downloader
	analyzer Analyzer
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(blobs Downloader, analyzer Analyzer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{blobs: blobs, analyzer: analyzer, logger: logger}
}

// Resolve downloads the policy document and extracts its markdown text.
// Any failure returns an empty string; the caller gates on that.
func (r *Resolver) Resolve(ctx context.Context, location string) string {
	content, err := r.blobs.DownloadToBytes(ctx, location)
	if err != nil {
		r.logger.Error("failed to download policy document", "location", location, "error", err)
		return ""
	}

	result, err := r.analyzer.Analyze(ctx, content, docintel.ModelLayout)
	if err != nil {
		r.logger.Error("failed to analyze policy document", "location", location, "error", err)
		return ""
	}

	return result.Content
}

var _ Searcher = (*search.Client)(nil)
var _ Downloader = (*blob.Client)(nil)
var _ Analyzer = (*docintel.Client)(nil)
