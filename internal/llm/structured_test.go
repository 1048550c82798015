package llm

import "testing"

func TestParseJSONContent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, false},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{"surrounding text", "Here you go: {\"a\":1} thanks", `{"a":1}`, false},
		{"empty", "", "", true},
		{"not json", "no braces here", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONContent(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateJSON(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"diagnosis": {"type": "string"}},
		"required": ["diagnosis"]
	}`)

	if err := ValidateJSON(schema, []byte(`{"diagnosis":"Crohn's Disease"}`)); err != nil {
		t.Errorf("valid doc rejected: %v", err)
	}
	if err := ValidateJSON(schema, []byte(`{"diagnosis":42}`)); err == nil {
		t.Error("invalid doc accepted")
	}
	if err := ValidateJSON(nil, []byte(`{}`)); err != nil {
		t.Errorf("empty schema should validate: %v", err)
	}
}
