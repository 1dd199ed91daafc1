package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
aws:
  region: "us-west-2"
  profile: "dev"

llm:
  model_id: "anthropic.claude-3-sonnet-20240229-v1:0"
  max_tokens: 1000
  temperature: 0.5

embedding:
  model_id: "amazon.titan-embed-text-v2:0"
  dimensions: 512
  normalize: true

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_docs"
  vector_dim: 512
  batch_size: 50

loader:
  max_depth: 5
  rate_limit: 1.5
  ignore_patterns:
    - "/test/"
  allowed_extensions:
    - ".html"
    - "/"

splitter:
  chunk_size: 500
  chunk_overlap: 100
  size_unit: "tokens"

logging:
  log_group_name: "/test/bedrock"
  role_name: "test-role"
  retention_days: 7
  text_delivery: true

ui:
  streaming: false
  theme: "dark"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", config.AWS.Region)
	assert.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", config.LLM.ModelID)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, 512, config.Embedding.Dimensions)
	assert.True(t, config.Embedding.Normalize)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, 5, config.Loader.MaxDepth)
	assert.Equal(t, 500, config.Splitter.ChunkSize)
	assert.Equal(t, "tokens", config.Splitter.SizeUnit)
	assert.Equal(t, "/test/bedrock", config.Logging.LogGroupName)
	assert.Equal(t, 7, config.Logging.RetentionDays)
	assert.False(t, config.UI.Streaming)
}

func TestLoadConfigDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", config.AWS.Region)
	assert.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", config.LLM.ModelID)
	assert.Equal(t, "amazon.titan-embed-text-v2:0", config.Embedding.ModelID)
	assert.Equal(t, 1024, config.Embedding.Dimensions)
	assert.Equal(t, config.Embedding.Dimensions, config.Database.VectorDim)
	assert.Equal(t, "chars", config.Splitter.SizeUnit)
	assert.Equal(t, "/strata/bedrock/invocations", config.Logging.LogGroupName)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		expectedErrs int
		fields       []string
	}{
		{
			name:         "valid defaults",
			mutate:       func(c *Config) {},
			expectedErrs: 0,
		},
		{
			name: "missing region",
			mutate: func(c *Config) {
				c.AWS.Region = ""
			},
			expectedErrs: 1,
			fields:       []string{"aws.region"},
		},
		{
			name: "half a static key pair",
			mutate: func(c *Config) {
				c.AWS.AccessKeyID = "AKIA123"
			},
			expectedErrs: 1,
			fields:       []string{"aws.access_key_id"},
		},
		{
			name: "bad token budget and temperature",
			mutate: func(c *Config) {
				c.LLM.MaxTokens = 10000
				c.LLM.Temperature = 3
			},
			expectedErrs: 2,
			fields:       []string{"llm.max_tokens", "llm.temperature"},
		},
		{
			// The boundary matching what the chat and invoke engines accept
			name: "temperature at the upper bound",
			mutate: func(c *Config) {
				c.LLM.Temperature = 1.0
			},
			expectedErrs: 0,
		},
		{
			name: "temperature above the upper bound",
			mutate: func(c *Config) {
				c.LLM.Temperature = 1.5
			},
			expectedErrs: 1,
			fields:       []string{"llm.temperature"},
		},
		{
			name: "unsupported dimensions",
			mutate: func(c *Config) {
				c.Embedding.Dimensions = 300
				c.Database.VectorDim = 300
			},
			expectedErrs: 1,
			fields:       []string{"embedding.dimensions"},
		},
		{
			name: "store width disagrees with embedder",
			mutate: func(c *Config) {
				c.Database.VectorDim = 256
			},
			expectedErrs: 1,
			fields:       []string{"database.vector_dim"},
		},
		{
			name: "overlap at least chunk size",
			mutate: func(c *Config) {
				c.Splitter.ChunkSize = 100
				c.Splitter.ChunkOverlap = 100
			},
			expectedErrs: 1,
			fields:       []string{"splitter.chunk_overlap"},
		},
		{
			name: "bad size unit",
			mutate: func(c *Config) {
				c.Splitter.SizeUnit = "words"
			},
			expectedErrs: 1,
			fields:       []string{"splitter.size_unit"},
		},
		{
			name: "log group without leading slash",
			mutate: func(c *Config) {
				c.Logging.LogGroupName = "bedrock"
			},
			expectedErrs: 1,
			fields:       []string{"logging.log_group_name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errs := config.Validate()
			require.Len(t, errs, tt.expectedErrs)

			for i, field := range tt.fields {
				assert.Equal(t, field, errs[i].Field)
				assert.NotEmpty(t, errs[i].Error())
			}
		})
	}
}

func TestMergeWithEnv(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("DATABASE_URL", "postgres://env:5432/envdb")
	t.Setenv("STRATA_MODEL_ID", "anthropic.claude-3-opus-20240229-v1:0")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, config)

	config, err = getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", config.AWS.Region)
	assert.Equal(t, "postgres://env:5432/envdb", config.Database.URL)
	assert.Equal(t, "anthropic.claude-3-opus-20240229-v1:0", config.LLM.ModelID)
}
