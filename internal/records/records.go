// Package records defines the schema-typed extraction targets produced from
// uploaded clinical documents, plus the field-level validation/repair that
// keeps probabilistic extraction output from aborting a case.
package records

import (
	"encoding/json"
	"fmt"
)

// PatientInformation is the patient record extracted from page images.
type PatientInformation struct {
	PatientName        string `json:"patient_name"`
	PatientDateOfBirth string `json:"patient_date_of_birth"`
	PatientID          string `json:"patient_id"`
	PatientAddress     string `json:"patient_address"`
	PatientPhoneNumber string `json:"patient_phone_number"`
}

// PhysicianContact holds the referring physician's office details.
type PhysicianContact struct {
	OfficePhone   string `json:"office_phone"`
	Fax           string `json:"fax"`
	OfficeAddress string `json:"office_address"`
}

// PhysicianInformation is the physician record extracted from page images.
type PhysicianInformation struct {
	PhysicianName    string           `json:"physician_name"`
	Specialty        string           `json:"specialty"`
	PhysicianContact PhysicianContact `json:"physician_contact"`
}

// TreatmentRequest is the requested medication or procedure nested in the
// clinical record.
type TreatmentRequest struct {
	NameOfMedicationOrProcedure string `json:"name_of_medication_or_procedure"`
	CodeOfMedicationOrProcedure string `json:"code_of_medication_or_procedure"`
	Dosage                      string `json:"dosage"`
	Duration                    string `json:"duration"`
	Rationale                   string `json:"rationale"`
	PresumedEligibility         string `json:"presumed_eligibility"`
}

// ClinicalInformation is the clinical record extracted from page images.
type ClinicalInformation struct {
	Diagnosis                     string           `json:"diagnosis"`
	ICD10Code                     string           `json:"icd_10_code"`
	PriorTreatmentsAndResults     string           `json:"prior_treatments_and_results"`
	SpecificDrugsTakenAndFailures string           `json:"specific_drugs_taken_and_failures"`
	AlternativeDrugsRequired      string           `json:"alternative_drugs_required"`
	RelevantLabResultsOrImaging   string           `json:"relevant_lab_results_or_imaging"`
	SymptomSeverityAndImpact      string           `json:"symptom_severity_and_impact"`
	PrognosisAndRiskIfNotApproved string           `json:"prognosis_and_risk_if_not_approved"`
	ClinicalRationaleForUrgency   string           `json:"clinical_rationale_for_urgency"`
	TreatmentRequest              TreatmentRequest `json:"treatment_request"`
}

// PlaceholderPatient returns a patient record with every field set to
// NotProvided, standing in when patient extraction failed.
func PlaceholderPatient() *PatientInformation {
	return &PatientInformation{
		PatientName:        NotProvided,
		PatientDateOfBirth: NotProvided,
		PatientID:          NotProvided,
		PatientAddress:     NotProvided,
		PatientPhoneNumber: NotProvided,
	}
}

// PlaceholderPhysician returns a physician record with every field set to
// NotProvided, standing in when physician extraction failed.
func PlaceholderPhysician() *PhysicianInformation {
	return &PhysicianInformation{
		PhysicianName: NotProvided,
		Specialty:     NotProvided,
		PhysicianContact: PhysicianContact{
			OfficePhone:   NotProvided,
			Fax:           NotProvided,
			OfficeAddress: NotProvided,
		},
	}
}

// PlaceholderClinical returns a clinical record with every field set to
// NotProvided. Callers normally gate on clinical extraction succeeding, so
// this exists for symmetry and direct determination calls.
func PlaceholderClinical() *ClinicalInformation {
	return &ClinicalInformation{
		Diagnosis:                     NotProvided,
		ICD10Code:                     NotProvided,
		PriorTreatmentsAndResults:     NotProvided,
		SpecificDrugsTakenAndFailures: NotProvided,
		AlternativeDrugsRequired:      NotProvided,
		RelevantLabResultsOrImaging:   NotProvided,
		SymptomSeverityAndImpact:      NotProvided,
		PrognosisAndRiskIfNotApproved: NotProvided,
		ClinicalRationaleForUrgency:   NotProvided,
		TreatmentRequest: TreatmentRequest{
			NameOfMedicationOrProcedure: NotProvided,
			CodeOfMedicationOrProcedure: NotProvided,
			Dosage:                      NotProvided,
			Duration:                    NotProvided,
			Rationale:                   NotProvided,
			PresumedEligibility:         NotProvided,
		},
	}
}

// DecodePatient converts a validated field map into a typed patient record.
func DecodePatient(fields map[string]any) (*PatientInformation, error) {
	var out PatientInformation
	if err := decode(fields, &out); err != nil {
		return nil, fmt.Errorf("failed to decode patient record: %w", err)
	}
	return &out, nil
}

// DecodePhysician converts a validated field map into a typed physician record.
func DecodePhysician(fields map[string]any) (*PhysicianInformation, error) {
	var out PhysicianInformation
	if err := decode(fields, &out); err != nil {
		return nil, fmt.Errorf("failed to decode physician record: %w", err)
	}
	return &out, nil
}

// DecodeClinical converts a validated field map into a typed clinical record.
func DecodeClinical(fields map[string]any) (*ClinicalInformation, error) {
	var out ClinicalInformation
	if err := decode(fields, &out); err != nil {
		return nil, fmt.Errorf("failed to decode clinical record: %w", err)
	}
	return &out, nil
}

func decode(fields map[string]any, target any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}
