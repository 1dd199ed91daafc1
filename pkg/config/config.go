package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AWS struct {
		Region          string `yaml:"region"`
		Profile         string `yaml:"profile"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
	} `yaml:"aws"`

	LLM struct {
		ModelID     string  `yaml:"model_id"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Embedding struct {
		ModelID    string `yaml:"model_id"`
		Dimensions int    `yaml:"dimensions"`
		Normalize  bool   `yaml:"normalize"`
	} `yaml:"embedding"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Loader struct {
		MaxDepth          int      `yaml:"max_depth"`
		RateLimit         float64  `yaml:"rate_limit"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"loader"`

	Splitter struct {
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
		SizeUnit     string `yaml:"size_unit"` // "chars" or "tokens"
	} `yaml:"splitter"`

	Logging struct {
		LogGroupName    string `yaml:"log_group_name"`
		RoleName        string `yaml:"role_name"`
		RetentionDays   int    `yaml:"retention_days"`
		S3BucketName    string `yaml:"s3_bucket_name"`
		S3KeyPrefix     string `yaml:"s3_key_prefix"`
		TextDelivery    bool   `yaml:"text_delivery"`
		ImageDelivery   bool   `yaml:"image_delivery"`
		EmbedDelivery   bool   `yaml:"embed_delivery"`
		MetricNamespace string `yaml:"metric_namespace"`
	} `yaml:"logging"`

	UI struct {
		Streaming bool   `yaml:"streaming"`
		Theme     string `yaml:"theme"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/strata/config.yaml"),
			"/etc/strata/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.AWS.Region == "" {
		config.AWS.Region = "us-east-1"
	}

	if config.LLM.ModelID == "" {
		config.LLM.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Embedding.ModelID == "" {
		config.Embedding.ModelID = "amazon.titan-embed-text-v2:0"
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 1024
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = config.Embedding.Dimensions
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Loader.MaxDepth == 0 {
		config.Loader.MaxDepth = 3
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}
	if len(config.Loader.AllowedExtensions) == 0 {
		config.Loader.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Splitter.ChunkSize == 0 {
		config.Splitter.ChunkSize = 1000
	}
	if config.Splitter.ChunkOverlap == 0 {
		config.Splitter.ChunkOverlap = 200
	}
	if config.Splitter.SizeUnit == "" {
		config.Splitter.SizeUnit = "chars"
	}

	if config.Logging.LogGroupName == "" {
		config.Logging.LogGroupName = "/strata/bedrock/invocations"
	}
	if config.Logging.RoleName == "" {
		config.Logging.RoleName = "strata-bedrock-logging"
	}
	if config.Logging.RetentionDays == 0 {
		config.Logging.RetentionDays = 30
	}
	if config.Logging.MetricNamespace == "" {
		config.Logging.MetricNamespace = "Strata/Bedrock"
	}

	if config.UI.Theme == "" {
		config.UI.Theme = "default"
	}
}

func mergeWithEnv(config *Config) {
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.AWS.Region = region
	}
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		config.AWS.Profile = profile
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if model := os.Getenv("STRATA_MODEL_ID"); model != "" {
		config.LLM.ModelID = model
	}
}
