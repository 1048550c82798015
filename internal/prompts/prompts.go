// Package prompts holds the prompt templates used across the pipeline and
// renders them with case data. Templates are embedded so the binary is
// self-contained.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/payerops/paflow/internal/records"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names. Render accepts any of these.
const (
	NERPatientSystem   = "ner_patient_system"
	NERPatientUser     = "ner_patient_user"
	NERPhysicianSystem = "ner_physician_system"
	NERPhysicianUser   = "ner_physician_user"
	NERClinicianSystem = "ner_clinician_system"
	NERClinicianUser   = "ner_clinician_user"

	QueryExpansionSystem = "query_expansion_system"
	QueryExpansionUser   = "query_expansion_user"

	PriorAuthSystem        = "prior_auth_system"
	PriorAuthUser          = "prior_auth_user"
	PriorAuthReasoningUser = "prior_auth_reasoning_user"

	SummarizePolicyUser = "summarize_policy_user"
)

// Store renders embedded prompt templates by name.
type Store struct {
	templates *template.Template
}

// NewStore parses all embedded templates. It fails only on a malformed
// template, which is a build defect rather than a runtime condition.
func NewStore() (*Store, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	return &Store{templates: tmpl}, nil
}

// Render executes the named template with the given data.
func (s *Store) Render(name string, data any) (string, error) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to render prompt %q: %w", name, err)
	}
	return buf.String(), nil
}

// Static returns a template that takes no data, such as a system prompt.
func (s *Store) Static(name string) (string, error) {
	return s.Render(name, nil)
}

// QueryExpansion renders the user prompt that asks the model to construct an
// optimized policy search query from extracted clinical information.
func (s *Store) QueryExpansion(clinical *records.ClinicalInformation) (string, error) {
	return s.Render(QueryExpansionUser, map[string]any{
		"Diagnosis":  clinical.Diagnosis,
		"Medication": clinical.TreatmentRequest.NameOfMedicationOrProcedure,
		"Code":       clinical.TreatmentRequest.CodeOfMedicationOrProcedure,
		"Dosage":     clinical.TreatmentRequest.Dosage,
		"Duration":   clinical.TreatmentRequest.Duration,
		"Rationale":  clinical.TreatmentRequest.Rationale,
	})
}

// PriorAuthInput carries everything the determination prompt needs.
type PriorAuthInput struct {
	Patient    *records.PatientInformation
	Physician  *records.PhysicianInformation
	Clinical   *records.ClinicalInformation
	PolicyText string
}

// PriorAuth renders the determination user prompt. Reasoning deployments get
// a variant with explicit step-by-step framing and no sampling hints.
// Sections whose extraction failed render from NotProvided-filled
// placeholders; a determination still proceeds on whatever was extracted.
func (s *Store) PriorAuth(in PriorAuthInput, reasoning bool) (string, error) {
	name := PriorAuthUser
	if reasoning {
		name = PriorAuthReasoningUser
	}

	patient := in.Patient
	if patient == nil {
		patient = records.PlaceholderPatient()
	}
	physician := in.Physician
	if physician == nil {
		physician = records.PlaceholderPhysician()
	}
	clinical := in.Clinical
	if clinical == nil {
		clinical = records.PlaceholderClinical()
	}

	return s.Render(name, map[string]any{
		"PatientName":    patient.PatientName,
		"PatientDOB":     patient.PatientDateOfBirth,
		"PatientID":      patient.PatientID,
		"PatientAddress": patient.PatientAddress,
		"PatientPhone":   patient.PatientPhoneNumber,

		"PhysicianName":    physician.PhysicianName,
		"Specialty":        physician.Specialty,
		"PhysicianPhone":   physician.PhysicianContact.OfficePhone,
		"PhysicianFax":     physician.PhysicianContact.Fax,
		"PhysicianAddress": physician.PhysicianContact.OfficeAddress,

		"Diagnosis":           clinical.Diagnosis,
		"ICD10Code":           clinical.ICD10Code,
		"PriorTreatments":     clinical.PriorTreatmentsAndResults,
		"SpecificDrugs":       clinical.SpecificDrugsTakenAndFailures,
		"AlternativeDrugs":    clinical.AlternativeDrugsRequired,
		"LabResults":          clinical.RelevantLabResultsOrImaging,
		"SymptomSeverity":     clinical.SymptomSeverityAndImpact,
		"PrognosisRisk":       clinical.PrognosisAndRiskIfNotApproved,
		"UrgencyRationale":    clinical.ClinicalRationaleForUrgency,
		"RequestedMedication": clinical.TreatmentRequest.NameOfMedicationOrProcedure,
		"MedicationCode":      clinical.TreatmentRequest.CodeOfMedicationOrProcedure,
		"Dosage":              clinical.TreatmentRequest.Dosage,
		"TreatmentDuration":   clinical.TreatmentRequest.Duration,
		"MedicationRationale": clinical.TreatmentRequest.Rationale,
		"PresumedEligibility": clinical.TreatmentRequest.PresumedEligibility,

		"PolicyText": in.PolicyText,
	})
}

// SummarizePolicy renders the prompt that condenses an oversized policy text
// so the determination request fits in the model context window.
func (s *Store) SummarizePolicy(policyText string) (string, error) {
	return s.Render(SummarizePolicyUser, map[string]any{
		"PolicyText": policyText,
	})
}
