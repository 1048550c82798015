package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsToUserHome(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if filepath.Base(d.Path()) != DefaultDirName {
		t.Errorf("default dir = %s, want base %s", d.Path(), DefaultDirName)
	}
}

func TestEnsureExists(t *testing.T) {
	root := filepath.Join(t.TempDir(), "paflow-home")
	d, err := New(root)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if d.Exists() {
		t.Fatal("home should not exist yet")
	}
	if err := d.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error: %v", err)
	}

	for _, p := range []string{d.PostgresDataPath(), d.CasesPath()} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
		}
	}
}

func TestCaseDir(t *testing.T) {
	d, _ := New("/tmp/paflow-test")
	got := d.CaseDir("case-123")
	want := filepath.Join("/tmp/paflow-test", CasesDirName, "case-123")
	if got != want {
		t.Errorf("CaseDir = %s, want %s", got, want)
	}
}
