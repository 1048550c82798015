package records

import (
	"testing"
)

func TestValidateSubstitutesDefaults(t *testing.T) {
	raw := map[string]any{
		"patient_name": "Sarah Sample",
		"patient_id":   12345, // wrong type
		// patient_date_of_birth, patient_address missing entirely
		"patient_phone_number": "",
	}

	got, err := Validate(raw, PatientSchema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	if got["patient_name"] != "Sarah Sample" {
		t.Errorf("patient_name = %v", got["patient_name"])
	}
	for _, f := range []string{"patient_id", "patient_date_of_birth", "patient_address", "patient_phone_number"} {
		if got[f] != NotProvided {
			t.Errorf("%s = %v, want %q", f, got[f], NotProvided)
		}
	}
}

func TestValidateHonorsAlias(t *testing.T) {
	raw := map[string]any{
		"patient_dob": "1985-03-02",
	}
	got, err := Validate(raw, PatientSchema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got["patient_date_of_birth"] != "1985-03-02" {
		t.Errorf("alias not honored: %v", got["patient_date_of_birth"])
	}
}

func TestValidateDeclaredDefaultWinsOverFallback(t *testing.T) {
	schema := &Schema{
		Name: "PatientInformation", // reuse patient JSON schema shape is fine for map check
		Fields: []Field{
			{Name: "patient_name", Kind: KindString, Default: "Unknown Patient"},
			{Name: "patient_date_of_birth", Kind: KindString},
			{Name: "patient_id", Kind: KindString, DefaultFunc: func() any { return "generated" }},
			{Name: "patient_address", Kind: KindString},
			{Name: "patient_phone_number", Kind: KindString},
		},
	}
	got, err := Validate(map[string]any{}, schema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got["patient_name"] != "Unknown Patient" {
		t.Errorf("declared default ignored: %v", got["patient_name"])
	}
	if got["patient_id"] != "generated" {
		t.Errorf("default factory ignored: %v", got["patient_id"])
	}
}

func TestValidateTypeFallbacks(t *testing.T) {
	schema := &Schema{
		Name: "synthetic",
		Fields: []Field{
			{Name: "count", Kind: KindInt},
			{Name: "score", Kind: KindFloat},
			{Name: "flag", Kind: KindBool},
			{Name: "items", Kind: KindList},
			{Name: "attrs", Kind: KindMap},
		},
	}
	got, err := Validate(map[string]any{"count": "nope"}, schema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got["count"] != 0 {
		t.Errorf("count = %v, want 0", got["count"])
	}
	if got["score"] != 0.0 {
		t.Errorf("score = %v, want 0.0", got["score"])
	}
	if got["flag"] != false {
		t.Errorf("flag = %v, want false", got["flag"])
	}
	if l, ok := got["items"].([]any); !ok || len(l) != 0 {
		t.Errorf("items = %v, want empty list", got["items"])
	}
	if m, ok := got["attrs"].(map[string]any); !ok || len(m) != 0 {
		t.Errorf("attrs = %v, want empty map", got["attrs"])
	}
}

func TestValidateNestedObject(t *testing.T) {
	raw := map[string]any{
		"diagnosis":  "Crohn's Disease (K50.90)",
		"icd10_code": "K50.90", // alias form
		"treatment_request": map[string]any{
			"name_of_medication_or_procedure": "Adalimumab",
			"dosage":                          nil, // missing
		},
	}

	got, err := Validate(raw, ClinicalSchema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}

	tr, ok := got["treatment_request"].(map[string]any)
	if !ok {
		t.Fatalf("treatment_request = %T", got["treatment_request"])
	}
	if tr["name_of_medication_or_procedure"] != "Adalimumab" {
		t.Errorf("medication = %v", tr["name_of_medication_or_procedure"])
	}
	if tr["dosage"] != NotProvided {
		t.Errorf("dosage = %v, want %q", tr["dosage"], NotProvided)
	}
	if got["prior_treatments_and_results"] != NotProvided {
		t.Errorf("prior_treatments_and_results = %v", got["prior_treatments_and_results"])
	}
	if got["icd_10_code"] != "K50.90" {
		t.Errorf("icd_10_code = %v", got["icd_10_code"])
	}
}

func TestValidateNonObjectNestedValue(t *testing.T) {
	raw := map[string]any{
		"physician_name":    "Dr. Ordoñez",
		"physician_contact": "not an object",
	}
	got, err := Validate(raw, PhysicianSchema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	contact, ok := got["physician_contact"].(map[string]any)
	if !ok {
		t.Fatalf("physician_contact = %T", got["physician_contact"])
	}
	if contact["office_phone"] != NotProvided {
		t.Errorf("office_phone = %v", contact["office_phone"])
	}
}

func TestDecodeClinical(t *testing.T) {
	validated, err := Validate(map[string]any{"diagnosis": "CD"}, ClinicalSchema, nil)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	rec, err := DecodeClinical(validated)
	if err != nil {
		t.Fatalf("DecodeClinical() error: %v", err)
	}
	if rec.Diagnosis != "CD" {
		t.Errorf("Diagnosis = %q", rec.Diagnosis)
	}
	if rec.TreatmentRequest.Dosage != NotProvided {
		t.Errorf("Dosage = %q", rec.TreatmentRequest.Dosage)
	}
}
