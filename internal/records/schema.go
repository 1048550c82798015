package records

import (
	"embed"
	"fmt"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Kind is the declared type of a record field.
type Kind string

const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindMap    Kind = "map"
	KindObject Kind = "object" // nested schema
)

// Field declares one schema field: its canonical name, an optional alias the
// extraction output may use instead, its kind, and its defaults.
type Field struct {
	Name        string
	Alias       string
	Kind        Kind
	Default     any
	DefaultFunc func() any
	Object      *Schema // sub-schema when Kind == KindObject
}

// Schema is the declared shape of one structured record.
type Schema struct {
	Name   string
	Fields []Field
}

// Registry of the record schemas, in extraction order.
var (
	PatientSchema = &Schema{
		Name: "PatientInformation",
		Fields: []Field{
			{Name: "patient_name", Kind: KindString},
			{Name: "patient_date_of_birth", Alias: "patient_dob", Kind: KindString},
			{Name: "patient_id", Kind: KindString},
			{Name: "patient_address", Kind: KindString},
			{Name: "patient_phone_number", Alias: "patient_phone", Kind: KindString},
		},
	}

	PhysicianSchema = &Schema{
		Name: "PhysicianInformation",
		Fields: []Field{
			{Name: "physician_name", Kind: KindString},
			{Name: "specialty", Kind: KindString},
			{Name: "physician_contact", Kind: KindObject, Object: &Schema{
				Name: "PhysicianContact",
				Fields: []Field{
					{Name: "office_phone", Kind: KindString},
					{Name: "fax", Kind: KindString},
					{Name: "office_address", Kind: KindString},
				},
			}},
		},
	}

	ClinicalSchema = &Schema{
		Name: "ClinicalInformation",
		Fields: []Field{
			{Name: "diagnosis", Kind: KindString},
			{Name: "icd_10_code", Alias: "icd10_code", Kind: KindString},
			{Name: "prior_treatments_and_results", Kind: KindString},
			{Name: "specific_drugs_taken_and_failures", Kind: KindString},
			{Name: "alternative_drugs_required", Kind: KindString},
			{Name: "relevant_lab_results_or_imaging", Kind: KindString},
			{Name: "symptom_severity_and_impact", Kind: KindString},
			{Name: "prognosis_and_risk_if_not_approved", Kind: KindString},
			{Name: "clinical_rationale_for_urgency", Kind: KindString},
			{Name: "treatment_request", Kind: KindObject, Object: &Schema{
				Name: "TreatmentRequest",
				Fields: []Field{
					{Name: "name_of_medication_or_procedure", Kind: KindString},
					{Name: "code_of_medication_or_procedure", Kind: KindString},
					{Name: "dosage", Kind: KindString},
					{Name: "duration", Kind: KindString},
					{Name: "rationale", Kind: KindString},
					{Name: "presumed_eligibility", Kind: KindString},
				},
			}},
		},
	}
)

// schemaFiles maps schema names to embedded JSON Schema documents used for
// the final whole-record check.
var schemaFiles = map[string]string{
	"PatientInformation":   "schemas/patient_information.json",
	"PhysicianInformation": "schemas/physician_information.json",
	"ClinicalInformation":  "schemas/clinical_information.json",
}

// JSONSchema returns the embedded JSON Schema for a record schema name.
func JSONSchema(name string) ([]byte, error) {
	file, ok := schemaFiles[name]
	if !ok {
		return nil, fmt.Errorf("no JSON schema for %s", name)
	}
	content, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}
	return content, nil
}
