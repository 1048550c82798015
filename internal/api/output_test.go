package api

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, FormatJSON, map[string]string{"case_id": "case-1"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"case_id": "case-1"`) {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, FormatYAML, map[string]string{"case_id": "case-1"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(buf.String(), "case_id: case-1") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, Format("xml"), nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestSetOutputFormat(t *testing.T) {
	t.Cleanup(func() { SetOutputFormat("yaml") })

	SetOutputFormat("json")
	if current != FormatJSON {
		t.Errorf("format = %q after selecting json", current)
	}
	SetOutputFormat("bogus")
	if current != FormatYAML {
		t.Errorf("format = %q, want yaml fallback", current)
	}
}
