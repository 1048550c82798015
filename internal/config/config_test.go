package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.LLM.APIKey != "${AZURE_OPENAI_KEY}" {
		t.Error("expected llm API key placeholder")
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("search top_k = %d, want 5", cfg.Search.TopK)
	}
	if cfg.Postgres.Image == "" {
		t.Error("expected default postgres image")
	}
	if cfg.Server.Listen == "" {
		t.Error("expected default listen address")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestToAzureConfigResolvesKeys(t *testing.T) {
	os.Setenv("TEST_LLM_KEY", "llm-key-123")
	defer os.Unsetenv("TEST_LLM_KEY")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "${TEST_LLM_KEY}"
	cfg.LLM.Endpoint = "https://example.openai.azure.com"

	azure := cfg.ToAzureConfig()
	if azure.APIKey != "llm-key-123" {
		t.Errorf("APIKey = %q", azure.APIKey)
	}
	if azure.Endpoint != "https://example.openai.azure.com" {
		t.Errorf("Endpoint = %q", azure.Endpoint)
	}
	if azure.Deployment != "gpt-4o" || azure.ReasoningDeployment != "o1" {
		t.Errorf("deployments = %q, %q", azure.Deployment, azure.ReasoningDeployment)
	}
}

func TestToDockerConfig(t *testing.T) {
	cfg := DefaultConfig()
	docker := cfg.ToDockerConfig("/var/data/pg")

	if docker.DataPath != "/var/data/pg" {
		t.Errorf("DataPath = %q", docker.DataPath)
	}
	if docker.Image != cfg.Postgres.Image {
		t.Errorf("Image = %q", docker.Image)
	}
}

func TestNewManagerLoadsFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
llm:
  deployment: "gpt-4o-custom"
search:
  index_name: "custom-policies"
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.LLM.Deployment != "gpt-4o-custom" {
		t.Errorf("deployment = %q", cfg.LLM.Deployment)
	}
	if cfg.Search.IndexName != "custom-policies" {
		t.Errorf("index_name = %q", cfg.Search.IndexName)
	}
	// Unset values fall back to defaults.
	if cfg.Search.TopK != 5 {
		t.Errorf("top_k = %d, want default 5", cfg.Search.TopK)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "llm:") || !strings.Contains(content, "postgres:") {
		t.Errorf("written config missing sections:\n%s", content)
	}
	if !strings.Contains(content, "${AZURE_OPENAI_KEY}") {
		t.Error("written config missing env var placeholder")
	}
}
