// Package extract runs the vision extraction stage: three entity extraction
// tasks (patient, physician, clinical) fan out over the same page images and
// produce schema-validated records.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/prompts"
	"github.com/payerops/paflow/internal/records"
)

// Step keys under which extraction output is recorded with the case.
const (
	StepPatient   = "patient_information"
	StepPhysician = "physician_information"
	StepClinical  = "clinical_information"
)

// Result holds the outcome of the extraction stage. A failed task leaves its
// typed record nil and its step keyed in Errors; the other tasks' output is
// still usable.
type Result struct {
	Patient   *records.PatientInformation
	Physician *records.PhysicianInformation
	Clinical  *records.ClinicalInformation

	// Fields holds the validated field maps by step key, as recorded with
	// the case.
	Fields map[string]map[string]any

	// Histories holds per-task conversation histories by step key.
	Histories map[string][]llm.Message

	// Errors holds failure messages for tasks that did not complete.
	Errors map[string]string
}

// Extractor runs entity extraction against a chat client.
type Extractor struct {
	client    llm.Client
	prompts   *prompts.Store
	logger    *slog.Logger
	maxTokens int
	sampling  llm.SamplingParams
}

// New creates an Extractor.
func New(client llm.Client, store *prompts.Store, logger *slog.Logger, maxTokens int, sampling llm.SamplingParams) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Extractor{
		client:    client,
		prompts:   store,
		logger:    logger,
		maxTokens: maxTokens,
		sampling:  sampling,
	}
}

type task struct {
	step       string
	systemName string
	userName   string
	schema     *records.Schema
}

var extractionTasks = []task{
	{StepPatient, prompts.NERPatientSystem, prompts.NERPatientUser, records.PatientSchema},
	{StepPhysician, prompts.NERPhysicianSystem, prompts.NERPhysicianUser, records.PhysicianSchema},
	{StepClinical, prompts.NERClinicianSystem, prompts.NERClinicianUser, records.ClinicalSchema},
}

// ExtractAll runs the three extraction tasks concurrently over the page
// images. Individual task failures are contained in Result.Errors; the call
// itself fails only when no work could be attempted.
func (e *Extractor) ExtractAll(ctx context.Context, imagePaths []string) (*Result, error) {
	if len(imagePaths) == 0 {
		return nil, fmt.Errorf("no page images to extract from")
	}

	type taskOutcome struct {
		step    string
		fields  map[string]any
		history []llm.Message
		err     error
	}

	outcomes := make(chan taskOutcome, len(extractionTasks))
	for _, t := range extractionTasks {
		go func(t task) {
			fields, history, err := e.runTask(ctx, t, imagePaths)
			outcomes <- taskOutcome{step: t.step, fields: fields, history: history, err: err}
		}(t)
	}

	result := &Result{
		Fields:    make(map[string]map[string]any),
		Histories: make(map[string][]llm.Message),
		Errors:    make(map[string]string),
	}

	for range extractionTasks {
		o := <-outcomes
		if o.err != nil {
			e.logger.Error("extraction task failed", "step", o.step, "error", o.err)
			result.Errors[o.step] = o.err.Error()
			continue
		}
		result.Fields[o.step] = o.fields
		result.Histories[o.step] = o.history
	}

	if err := e.decode(result); err != nil {
		return nil, err
	}
	return result, nil
}

// runTask executes one extraction task and validates its output fields.
func (e *Extractor) runTask(ctx context.Context, t task, imagePaths []string) (map[string]any, []llm.Message, error) {
	system, err := e.prompts.Static(t.systemName)
	if err != nil {
		return nil, nil, err
	}
	user, err := e.prompts.Static(t.userName)
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("extracting entity data", "step", t.step, "pages", len(imagePaths))

	res, err := e.client.Chat(ctx, &llm.ChatRequest{
		System:         system,
		Prompt:         user,
		ImagePaths:     imagePaths,
		ResponseFormat: llm.FormatJSON,
		MaxTokens:      e.maxTokens,
		Sampling:       e.sampling,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("chat failed for %s: %w", t.step, err)
	}
	if !res.Ok() {
		return nil, nil, fmt.Errorf("chat failed for %s: %s", t.step, res.ErrorMessage)
	}

	var raw map[string]any
	if err := json.Unmarshal(res.ParsedJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s response: %w", t.step, err)
	}

	validated, err := records.Validate(raw, t.schema, e.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate %s: %w", t.step, err)
	}

	return validated, res.History, nil
}

// decode converts validated field maps into typed records for the steps
// that succeeded.
func (e *Extractor) decode(result *Result) error {
	if fields, ok := result.Fields[StepPatient]; ok {
		patient, err := records.DecodePatient(fields)
		if err != nil {
			return err
		}
		result.Patient = patient
	}
	if fields, ok := result.Fields[StepPhysician]; ok {
		physician, err := records.DecodePhysician(fields)
		if err != nil {
			return err
		}
		result.Physician = physician
	}
	if fields, ok := result.Fields[StepClinical]; ok {
		clinical, err := records.DecodeClinical(fields)
		if err != nil {
			return err
		}
		result.Clinical = clinical
	}
	return nil
}
