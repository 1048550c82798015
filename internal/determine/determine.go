// Package determine generates the final prior authorization determination.
// A reasoning-tier attempt runs first when enabled, falling back to the
// standard tier; context-window overflow triggers a one-shot policy
// summarization retry within whichever tier hit it.
package determine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go/v4"

	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/prompts"
	"github.com/payerops/paflow/internal/records"
)

// standardAttempts bounds standard-tier retries for the determination call.
const standardAttempts = 2

// Request carries everything needed to decide one case.
type Request struct {
	CaseID       string
	Patient      *records.PatientInformation
	Physician    *records.PhysicianInformation
	Clinical     *records.ClinicalInformation
	PolicyText   string
	UseReasoning bool
}

// Outcome is the determination plus the record of how it was produced.
type Outcome struct {
	Determination    string
	History          []llm.Message
	UsedReasoning    bool
	PolicySummarized bool
}

// Generator produces final determinations.
type Generator struct {
	client    llm.Client
	prompts   *prompts.Store
	logger    *slog.Logger
	maxTokens int
	sampling  llm.SamplingParams
}

// NewGenerator creates a Generator.
func NewGenerator(client llm.Client, store *prompts.Store, logger *slog.Logger, maxTokens int, sampling llm.SamplingParams) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Generator{
		client:    client,
		prompts:   store,
		logger:    logger,
		maxTokens: maxTokens,
		sampling:  sampling,
	}
}

// Final generates the determination for a case. When the reasoning tier is
// requested and fails, the standard tier takes over; the standard tier
// itself retries transient failures.
func (g *Generator) Final(ctx context.Context, req *Request) (*Outcome, error) {
	if req.UseReasoning {
		g.logger.Info("generating final determination on reasoning tier", "case_id", req.CaseID)
		outcome, err := g.runTier(ctx, req, true)
		if err == nil {
			return outcome, nil
		}
		g.logger.Warn("reasoning tier failed, falling back to standard tier",
			"case_id", req.CaseID, "error", err)
	}

	var outcome *Outcome
	err := retry.Do(
		func() error {
			g.logger.Info("generating final determination on standard tier", "case_id", req.CaseID)
			var err error
			outcome, err = g.runTier(ctx, req, false)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(standardAttempts),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Warn("standard tier attempt failed, retrying",
				"case_id", req.CaseID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("final determination failed for case %s: %w", req.CaseID, err)
	}
	return outcome, nil
}

// runTier makes one determination attempt on the given tier. On context
// overflow it summarizes the policy and retries the same tier once with the
// condensed text.
func (g *Generator) runTier(ctx context.Context, req *Request, reasoning bool) (*Outcome, error) {
	res, err := g.chat(ctx, req, req.PolicyText, reasoning)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{UsedReasoning: reasoning}

	if res.Failure == llm.FailureContextLength {
		g.logger.Info("policy text exceeds model context, summarizing",
			"case_id", req.CaseID, "reasoning", reasoning)

		summary, err := g.SummarizePolicy(ctx, req.PolicyText)
		if err != nil {
			return nil, fmt.Errorf("policy summarization failed: %w", err)
		}
		outcome.PolicySummarized = true

		res, err = g.chat(ctx, req, summary, reasoning)
		if err != nil {
			return nil, err
		}
		if res.Failure == llm.FailureContextLength {
			return nil, fmt.Errorf("context length exceeded even after policy summarization")
		}
	}

	if !res.Ok() {
		return nil, fmt.Errorf("determination chat failed: %s", res.ErrorMessage)
	}

	outcome.Determination = res.Content
	outcome.History = res.History
	return outcome, nil
}

func (g *Generator) chat(ctx context.Context, req *Request, policyText string, reasoning bool) (*llm.ChatResult, error) {
	prompt, err := g.prompts.PriorAuth(prompts.PriorAuthInput{
		Patient:    req.Patient,
		Physician:  req.Physician,
		Clinical:   req.Clinical,
		PolicyText: policyText,
	}, reasoning)
	if err != nil {
		return nil, err
	}

	chatReq := &llm.ChatRequest{
		Prompt:         prompt,
		ResponseFormat: llm.FormatText,
	}

	if reasoning {
		return g.client.ChatReasoning(ctx, chatReq)
	}

	system, err := g.prompts.Static(prompts.PriorAuthSystem)
	if err != nil {
		return nil, err
	}
	chatReq.System = system
	chatReq.MaxTokens = g.maxTokens
	chatReq.Sampling = g.sampling

	return g.client.Chat(ctx, chatReq)
}

// SummarizePolicy condenses policy text on the standard tier so the
// determination prompt fits the model context window.
func (g *Generator) SummarizePolicy(ctx context.Context, policyText string) (string, error) {
	prompt, err := g.prompts.SummarizePolicy(policyText)
	if err != nil {
		return "", err
	}

	res, err := g.client.Chat(ctx, &llm.ChatRequest{
		Prompt:         prompt,
		ResponseFormat: llm.FormatText,
		MaxTokens:      g.maxTokens,
		Sampling:       g.sampling,
	})
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", fmt.Errorf("summarization chat failed: %s", res.ErrorMessage)
	}
	return res.Content, nil
}
