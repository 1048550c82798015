// Package pipeline orchestrates prior authorization case processing: page
// rendering, entity extraction, policy location and resolution, and the
// final determination, with every case ending in exactly one persisted
// record.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/payerops/paflow/internal/blob"
	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/determine"
	"github.com/payerops/paflow/internal/extract"
	"github.com/payerops/paflow/internal/pdfpages"
	"github.com/payerops/paflow/internal/policy"
)

// Result keys recorded with the case, matching what reviewers read back.
const (
	KeyUploadedFiles      = "uploaded_files"
	KeyOptimizedQuery     = "optimized_query"
	KeyPolicyLocation     = "policy_location"
	KeyPolicyText         = "policy_text"
	KeyFinalDetermination = "final_determination"
	KeyError              = "error"
)

// Gate failure reasons recorded under KeyError when processing stops early.
const (
	ReasonNoClinicalInfo = "Clinical Information not found in AI response."
	ReasonPolicyNotFound = "Policy not found."
	ReasonNoPolicyText   = "Policy text not found."
)

// Reporter receives case progress updates. The server streams these to
// status endpoints; the CLI logs them.
type Reporter interface {
	Step(caseID, message string)
	Done(caseID string)
	Failed(caseID, reason string)
}

// LogReporter reports progress through a logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r *LogReporter) Step(caseID, message string) {
	r.Logger.Info(message, "case_id", caseID)
}

func (r *LogReporter) Done(caseID string) {
	r.Logger.Info("case processing complete", "case_id", caseID)
}

func (r *LogReporter) Failed(caseID, reason string) {
	r.Logger.Warn("case processing stopped", "case_id", caseID, "reason", reason)
}

// Uploader mirrors case documents to remote storage.
type Uploader interface {
	Upload(ctx context.Context, blobPath string, data []byte) error
}

var _ Uploader = (*blob.Client)(nil)

// Pipeline wires the processing stages together.
type Pipeline struct {
	extractor    *extract.Extractor
	locator      *policy.Locator
	resolver     *policy.Resolver
	generator    *determine.Generator
	store        casestore.Store
	uploader     Uploader
	logger       *slog.Logger
	reporter     Reporter
	useReasoning bool
}

// Config holds the stage implementations for a Pipeline.
type Config struct {
	Extractor *extract.Extractor
	Locator   *policy.Locator
	Resolver  *policy.Resolver
	Generator *determine.Generator
	Store     casestore.Store

	// Uploader, when set, mirrors source documents under
	// cases/{caseID}/source/ before processing begins.
	Uploader Uploader

	Logger       *slog.Logger
	Reporter     Reporter
	UseReasoning bool
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Reporter == nil {
		cfg.Reporter = &LogReporter{Logger: cfg.Logger}
	}
	return &Pipeline{
		extractor:    cfg.Extractor,
		locator:      cfg.Locator,
		resolver:     cfg.Resolver,
		generator:    cfg.Generator,
		store:        cfg.Store,
		uploader:     cfg.Uploader,
		logger:       cfg.Logger,
		reporter:     cfg.Reporter,
		useReasoning: cfg.UseReasoning,
	}
}

// Run processes one case end to end. caseID may be empty, in which case a
// new one is generated. Gate failures (missing clinical data, no policy
// match, unresolvable policy text) are recorded on the case rather than
// returned as errors; the returned record is always the persisted state.
func (p *Pipeline) Run(ctx context.Context, uploads []string, caseID string) (*casestore.CaseRecord, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no files provided for processing")
	}
	if caseID == "" {
		caseID = uuid.New().String()
	}

	record := &casestore.CaseRecord{
		CaseID:  caseID,
		Results: make(map[string]any),
	}

	tempDir, err := os.MkdirTemp("", "paflow-case-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create case temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			p.logger.Warn("failed to clean up case temp dir", "case_id", caseID, "error", err)
		}
	}()

	// The record persists no matter where processing stops. Persistence must
	// survive request cancellation, so the upsert detaches from ctx.
	defer func() {
		storeCtx := context.WithoutCancel(ctx)
		if err := p.store.Upsert(storeCtx, record); err != nil {
			p.logger.Error("failed to persist case record", "case_id", caseID, "error", err)
		}
	}()

	p.mirrorFiles(ctx, record, uploads, "source")

	p.reporter.Step(caseID, "rendering case documents")
	images, err := pdfpages.CollectImages(ctx, uploads, filepath.Join(tempDir, "images"))
	if err != nil {
		record.Results[KeyError] = err.Error()
		p.reporter.Failed(caseID, err.Error())
		return record, nil
	}
	p.mirrorFiles(ctx, record, images, "images")

	p.reporter.Step(caseID, "analyzing clinical information")
	extraction, err := p.extractor.ExtractAll(ctx, images)
	if err != nil {
		record.Results[KeyError] = err.Error()
		p.reporter.Failed(caseID, err.Error())
		return record, nil
	}
	p.recordExtraction(record, extraction)

	if extraction.Clinical == nil {
		record.Results[KeyError] = ReasonNoClinicalInfo
		p.reporter.Failed(caseID, ReasonNoClinicalInfo)
		return record, nil
	}

	p.reporter.Step(caseID, "expanding query and searching for policy")
	located := p.locator.Locate(ctx, extraction.Clinical)
	record.Results[KeyOptimizedQuery] = located.OptimizedQuery
	record.Results[KeyPolicyLocation] = located.Location
	if len(located.History) > 0 {
		record.History = append(record.History, located.History)
	}

	if !policy.Located(located.Location) {
		record.Results[KeyError] = ReasonPolicyNotFound
		p.reporter.Failed(caseID, ReasonPolicyNotFound)
		return record, nil
	}

	p.reporter.Step(caseID, "resolving policy text")
	policyText := p.resolver.Resolve(ctx, located.Location)
	if policyText == "" {
		record.Results[KeyError] = ReasonNoPolicyText
		p.reporter.Failed(caseID, ReasonNoPolicyText)
		return record, nil
	}
	record.Results[KeyPolicyText] = policyText

	p.reporter.Step(caseID, "generating final determination")
	outcome, err := p.generator.Final(ctx, &determine.Request{
		CaseID:       caseID,
		Patient:      extraction.Patient,
		Physician:    extraction.Physician,
		Clinical:     extraction.Clinical,
		PolicyText:   policyText,
		UseReasoning: p.useReasoning,
	})
	if err != nil {
		record.Results[KeyError] = err.Error()
		p.reporter.Failed(caseID, err.Error())
		return record, nil
	}

	record.Results[KeyFinalDetermination] = outcome.Determination
	if len(outcome.History) > 0 {
		record.History = append(record.History, outcome.History)
	}

	p.reporter.Done(caseID)
	return record, nil
}

// mirrorFiles copies case artifacts to remote storage under
// cases/{caseID}/{subdir}/ so reviewers can pull them later. Mirroring is
// best effort; a failed upload is logged and processing continues.
func (p *Pipeline) mirrorFiles(ctx context.Context, record *casestore.CaseRecord, files []string, subdir string) {
	if p.uploader == nil {
		return
	}

	mirrored, _ := record.Results[KeyUploadedFiles].([]string)
	uploaded := false
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			p.logger.Warn("failed to read file for mirroring", "case_id", record.CaseID, "file", file, "error", err)
			continue
		}
		blobPath := path.Join("cases", record.CaseID, subdir, filepath.Base(file))
		if err := p.uploader.Upload(ctx, blobPath, data); err != nil {
			p.logger.Warn("failed to mirror file", "case_id", record.CaseID, "file", file, "error", err)
			continue
		}
		mirrored = append(mirrored, blobPath)
		uploaded = true
	}
	if uploaded {
		record.Results[KeyUploadedFiles] = mirrored
	}
}

// recordExtraction copies per-step extraction output onto the case record.
func (p *Pipeline) recordExtraction(record *casestore.CaseRecord, extraction *extract.Result) {
	for step, fields := range extraction.Fields {
		record.Results[step] = fields
	}
	for _, step := range []string{extract.StepPatient, extract.StepPhysician, extract.StepClinical} {
		if history, ok := extraction.Histories[step]; ok && len(history) > 0 {
			record.History = append(record.History, history)
		}
	}
	for step, msg := range extraction.Errors {
		p.logger.Warn("extraction step missing from case record", "step", step, "error", msg)
	}
}

// GetResults returns the persisted record for a case, or nil if unknown.
func (p *Pipeline) GetResults(ctx context.Context, caseID string) (*casestore.CaseRecord, error) {
	return p.store.Get(ctx, caseID)
}
