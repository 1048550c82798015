package config

import (
	"github.com/payerops/paflow/internal/blob"
	"github.com/payerops/paflow/internal/casestore"
	"github.com/payerops/paflow/internal/docintel"
	"github.com/payerops/paflow/internal/llm"
	"github.com/payerops/paflow/internal/search"
)

// Config holds paflow configuration.
// Stored at: ~/.paflow/config.yaml
type Config struct {
	LLM      LLMCfg      `mapstructure:"llm" yaml:"llm"`
	Search   SearchCfg   `mapstructure:"search" yaml:"search"`
	Blob     BlobCfg     `mapstructure:"blob" yaml:"blob"`
	DocIntel DocIntelCfg `mapstructure:"docintel" yaml:"docintel"`
	Postgres PostgresCfg `mapstructure:"postgres" yaml:"postgres"`
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
}

// LLMCfg configures the chat completion service.
type LLMCfg struct {
	Endpoint            string  `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey              string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Deployment          string  `mapstructure:"deployment" yaml:"deployment"`
	ReasoningDeployment string  `mapstructure:"reasoning_deployment" yaml:"reasoning_deployment"`
	APIVersion          string  `mapstructure:"api_version" yaml:"api_version"`
	MaxTokens           int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature         float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP                float64 `mapstructure:"top_p" yaml:"top_p"`
	FrequencyPenalty    float64 `mapstructure:"frequency_penalty" yaml:"frequency_penalty"`
	PresencePenalty     float64 `mapstructure:"presence_penalty" yaml:"presence_penalty"`
	Seed                int64   `mapstructure:"seed" yaml:"seed"`
}

// SearchCfg configures the policy index.
type SearchCfg struct {
	Endpoint              string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey                string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	IndexName             string `mapstructure:"index_name" yaml:"index_name"`
	SemanticConfiguration string `mapstructure:"semantic_configuration" yaml:"semantic_configuration"`
	TopK                  int    `mapstructure:"top_k" yaml:"top_k"`
}

// BlobCfg configures the document blob store.
type BlobCfg struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Container string `mapstructure:"container" yaml:"container"`
	SASToken  string `mapstructure:"sas_token" yaml:"sas_token"` // supports ${ENV_VAR} syntax
}

// DocIntelCfg configures the document analysis service.
type DocIntelCfg struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
}

// PostgresCfg holds case store configuration. When DSN is empty the server
// manages its own Postgres container.
type PostgresCfg struct {
	DSN           string `mapstructure:"dsn" yaml:"dsn"` // supports ${ENV_VAR} syntax
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image"`
	Port          string `mapstructure:"port" yaml:"port"`
	User          string `mapstructure:"user" yaml:"user"`
	Password      string `mapstructure:"password" yaml:"password"`
	Database      string `mapstructure:"database" yaml:"database"`
}

// ServerCfg holds HTTP server configuration.
type ServerCfg struct {
	Listen          string `mapstructure:"listen" yaml:"listen"`
	MaxUploadSizeMB int    `mapstructure:"max_upload_size_mb" yaml:"max_upload_size_mb"`
}

// PipelineCfg holds case processing configuration.
type PipelineCfg struct {
	UseReasoning bool `mapstructure:"use_reasoning" yaml:"use_reasoning"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMCfg{
			Endpoint:            "${AZURE_OPENAI_ENDPOINT}",
			APIKey:              "${AZURE_OPENAI_KEY}",
			Deployment:          "gpt-4o",
			ReasoningDeployment: "o1",
			APIVersion:          "2024-08-01-preview",
			MaxTokens:           4096,
			Temperature:         0.1,
			TopP:                1.0,
		},
		Search: SearchCfg{
			Endpoint:              "${AZURE_SEARCH_ENDPOINT}",
			APIKey:                "${AZURE_SEARCH_KEY}",
			IndexName:             "policies",
			SemanticConfiguration: "my-semantic-config",
			TopK:                  5,
		},
		Blob: BlobCfg{
			Endpoint:  "${AZURE_STORAGE_ENDPOINT}",
			Container: "pre-auth-policies",
			SASToken:  "${AZURE_STORAGE_SAS_TOKEN}",
		},
		DocIntel: DocIntelCfg{
			Endpoint: "${AZURE_DOCUMENT_INTELLIGENCE_ENDPOINT}",
			APIKey:   "${AZURE_DOCUMENT_INTELLIGENCE_KEY}",
		},
		Postgres: PostgresCfg{
			ContainerName: casestore.DefaultContainerName,
			Image:         casestore.DefaultImage,
			Port:          casestore.DefaultPort,
			User:          casestore.DefaultUser,
			Password:      casestore.DefaultPassword,
			Database:      casestore.DefaultDatabase,
		},
		Server: ServerCfg{
			Listen:          "127.0.0.1:8170",
			MaxUploadSizeMB: 64,
		},
		Pipeline: PipelineCfg{
			UseReasoning: false,
		},
	}
}

// ToAzureConfig converts the LLM section to a client config, resolving
// ${ENV_VAR} references.
func (c *Config) ToAzureConfig() llm.AzureConfig {
	return llm.AzureConfig{
		Endpoint:            ResolveEnvVars(c.LLM.Endpoint),
		APIKey:              ResolveEnvVars(c.LLM.APIKey),
		Deployment:          c.LLM.Deployment,
		ReasoningDeployment: c.LLM.ReasoningDeployment,
		APIVersion:          c.LLM.APIVersion,
	}
}

// Sampling returns the configured sampling parameters.
func (c *Config) Sampling() llm.SamplingParams {
	return llm.SamplingParams{
		Temperature:      c.LLM.Temperature,
		TopP:             c.LLM.TopP,
		FrequencyPenalty: c.LLM.FrequencyPenalty,
		PresencePenalty:  c.LLM.PresencePenalty,
		Seed:             c.LLM.Seed,
	}
}

// ToSearchConfig converts the search section to a client config.
func (c *Config) ToSearchConfig() search.Config {
	return search.Config{
		Endpoint:              ResolveEnvVars(c.Search.Endpoint),
		APIKey:                ResolveEnvVars(c.Search.APIKey),
		IndexName:             c.Search.IndexName,
		SemanticConfiguration: c.Search.SemanticConfiguration,
		Top:                   c.Search.TopK,
		KNearestNeighbors:     c.Search.TopK,
	}
}

// ToBlobConfig converts the blob section to a client config.
func (c *Config) ToBlobConfig() blob.Config {
	return blob.Config{
		Endpoint:  ResolveEnvVars(c.Blob.Endpoint),
		Container: c.Blob.Container,
		SASToken:  ResolveEnvVars(c.Blob.SASToken),
	}
}

// ToDocIntelConfig converts the document analysis section to a client config.
func (c *Config) ToDocIntelConfig() docintel.Config {
	return docintel.Config{
		Endpoint: ResolveEnvVars(c.DocIntel.Endpoint),
		APIKey:   ResolveEnvVars(c.DocIntel.APIKey),
	}
}

// ToDockerConfig converts the postgres section to a container manager
// config. DataPath is supplied by the caller since it lives under the home
// directory.
func (c *Config) ToDockerConfig(dataPath string) casestore.DockerConfig {
	return casestore.DockerConfig{
		ContainerName: c.Postgres.ContainerName,
		Image:         c.Postgres.Image,
		DataPath:      dataPath,
		HostPort:      c.Postgres.Port,
		User:          c.Postgres.User,
		Password:      ResolveEnvVars(c.Postgres.Password),
		Database:      c.Postgres.Database,
	}
}

// PostgresDSN returns the configured DSN with env vars resolved, or empty
// when the container-managed database should be used.
func (c *Config) PostgresDSN() string {
	return ResolveEnvVars(c.Postgres.DSN)
}
