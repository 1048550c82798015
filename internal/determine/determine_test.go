package determine

import (
	"context"
	"fmt"
	"testing"

	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/prompts"
	"github.com/payerops/paflow/internal/records"
)

func testRequest(useReasoning bool) *Request {
	return &Request{
		CaseID: "case-1",
		Patient: &records.PatientInformation{
			PatientName: "Sarah Sample",
		},
		Physician: &records.PhysicianInformation{
			PhysicianName: "Dr. Ordoñez",
		},
		Clinical: &records.ClinicalInformation{
			Diagnosis: "Crohn's Disease",
			TreatmentRequest: records.TreatmentRequest{
				NameOfMedicationOrProcedure: "Adalimumab",
			},
		},
		PolicyText:   "Policy: biologic therapy requires documented steroid failure.",
		UseReasoning: useReasoning,
	}
}

func newGenerator(t *testing.T, client llm.Client) *Generator {
	t.Helper()
	store, err := prompts.NewStore()
	if err != nil {
		t.Fatalf("prompts.NewStore() error: %v", err)
	}
	return NewGenerator(client, store, nil, 0, llm.SamplingParams{})
}

func okResult(content string) *llm.ChatResult {
	return &llm.ChatResult{
		Content: content,
		History: []llm.Message{
			{Role: "user", Content: "prompt"},
			{Role: "assistant", Content: content},
		},
	}
}

func TestFinalStandardTier(t *testing.T) {
	client := llm.NewMockClient()
	client.ResponseText = "Approved: policy criteria met."

	outcome, err := newGenerator(t, client).Final(context.Background(), testRequest(false))
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if outcome.Determination != "Approved: policy criteria met." {
		t.Errorf("determination = %q", outcome.Determination)
	}
	if outcome.UsedReasoning {
		t.Error("UsedReasoning = true for standard tier")
	}
	if client.ChatCount() != 1 || client.ReasoningCount() != 0 {
		t.Errorf("calls = %d chat, %d reasoning", client.ChatCount(), client.ReasoningCount())
	}
}

func TestFinalToleratesMissingPatientAndPhysician(t *testing.T) {
	client := llm.NewMockClient()
	client.ResponseText = "Needs More Information: physician details absent."

	req := testRequest(false)
	req.Patient = nil
	req.Physician = nil

	outcome, err := newGenerator(t, client).Final(context.Background(), req)
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if outcome.Determination != "Needs More Information: physician details absent." {
		t.Errorf("determination = %q", outcome.Determination)
	}
	if client.ChatCount() != 1 {
		t.Errorf("chat calls = %d, want 1", client.ChatCount())
	}
}

func TestFinalReasoningTier(t *testing.T) {
	client := llm.NewMockClient()
	client.ResponseText = "Denied: criterion 2 not met."

	outcome, err := newGenerator(t, client).Final(context.Background(), testRequest(true))
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if !outcome.UsedReasoning {
		t.Error("UsedReasoning = false for reasoning tier")
	}
	if client.ReasoningCount() != 1 || client.ChatCount() != 0 {
		t.Errorf("calls = %d chat, %d reasoning", client.ChatCount(), client.ReasoningCount())
	}
}

func TestFinalReasoningFallsBackToStandard(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue(&llm.ChatResult{
		Failure:      llm.FailureFatal,
		ErrorMessage: "reasoning deployment unavailable",
	}, fmt.Errorf("reasoning deployment unavailable"))
	client.Enqueue(okResult("Needs More Information: missing labs."), nil)

	outcome, err := newGenerator(t, client).Final(context.Background(), testRequest(true))
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if outcome.UsedReasoning {
		t.Error("fallback outcome should not report reasoning tier")
	}
	if outcome.Determination != "Needs More Information: missing labs." {
		t.Errorf("determination = %q", outcome.Determination)
	}
	if client.ReasoningCount() != 1 || client.ChatCount() != 1 {
		t.Errorf("calls = %d chat, %d reasoning", client.ChatCount(), client.ReasoningCount())
	}
}

func TestFinalStandardRetriesOnce(t *testing.T) {
	client := llm.NewMockClient()
	client.Enqueue(&llm.ChatResult{
		Failure:      llm.FailureTransient,
		ErrorMessage: "rate limited",
	}, fmt.Errorf("rate limited"))
	client.Enqueue(okResult("Approved."), nil)

	outcome, err := newGenerator(t, client).Final(context.Background(), testRequest(false))
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if outcome.Determination != "Approved." {
		t.Errorf("determination = %q", outcome.Determination)
	}
	if client.ChatCount() != 2 {
		t.Errorf("chat calls = %d, want 2", client.ChatCount())
	}
}

func TestFinalStandardExhaustsRetries(t *testing.T) {
	client := llm.NewMockClient()
	client.ShouldFail = true

	_, err := newGenerator(t, client).Final(context.Background(), testRequest(false))
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if client.ChatCount() != int64(standardAttempts) {
		t.Errorf("chat calls = %d, want %d", client.ChatCount(), standardAttempts)
	}
}

func TestFinalSummarizesOnContextOverflow(t *testing.T) {
	client := llm.NewMockClient()
	// Determination attempt overflows, policy gets summarized, retry succeeds.
	client.Enqueue(&llm.ChatResult{Failure: llm.FailureContextLength}, nil)
	client.Enqueue(okResult("Condensed policy criteria."), nil)
	client.Enqueue(okResult("Approved on summarized policy."), nil)

	outcome, err := newGenerator(t, client).Final(context.Background(), testRequest(false))
	if err != nil {
		t.Fatalf("Final() error: %v", err)
	}
	if !outcome.PolicySummarized {
		t.Error("PolicySummarized = false")
	}
	if outcome.Determination != "Approved on summarized policy." {
		t.Errorf("determination = %q", outcome.Determination)
	}
	if client.ChatCount() != 3 {
		t.Errorf("chat calls = %d, want 3", client.ChatCount())
	}
}

func TestFinalOverflowAfterSummarizationFails(t *testing.T) {
	client := llm.NewMockClient()
	for i := 0; i < standardAttempts; i++ {
		client.Enqueue(&llm.ChatResult{Failure: llm.FailureContextLength}, nil)
		client.Enqueue(okResult("summary"), nil)
		client.Enqueue(&llm.ChatResult{Failure: llm.FailureContextLength}, nil)
	}

	_, err := newGenerator(t, client).Final(context.Background(), testRequest(false))
	if err == nil {
		t.Fatal("expected error when overflow persists after summarization")
	}
}

func TestSummarizePolicy(t *testing.T) {
	client := llm.NewMockClient()
	client.ResponseText = "Short summary."

	summary, err := newGenerator(t, client).SummarizePolicy(context.Background(), "long policy text")
	if err != nil {
		t.Fatalf("SummarizePolicy() error: %v", err)
	}
	if summary != "Short summary." {
		t.Errorf("summary = %q", summary)
	}
}
