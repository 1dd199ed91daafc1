package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate AWS config
	if c.AWS.Region == "" {
		errors = append(errors, ValidationError{
			Field:   "aws.region",
			Message: "AWS region is required",
		})
	}

	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		errors = append(errors, ValidationError{
			Field:   "aws.access_key_id",
			Message: "access_key_id and secret_access_key must be set together",
		})
	}

	// Validate LLM config
	if c.LLM.ModelID == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.model_id",
			Message: "model ID is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Anthropic models on Bedrock accept temperature 0 to 1
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 1",
		})
	}

	// Validate Embedding config
	switch c.Embedding.Dimensions {
	case 256, 512, 1024:
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.dimensions",
			Message: "dimensions must be 256, 512 or 1024",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	} else if c.Database.VectorDim != c.Embedding.Dimensions {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must match embedding.dimensions",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Loader config
	if c.Loader.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "loader.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Loader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "loader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate extensions format
	for _, ext := range c.Loader.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			errors = append(errors, ValidationError{
				Field:   "loader.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	// Validate Splitter config
	if c.Splitter.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "splitter.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Splitter.SizeUnit != "chars" && c.Splitter.SizeUnit != "tokens" {
		errors = append(errors, ValidationError{
			Field:   "splitter.size_unit",
			Message: "size_unit must be \"chars\" or \"tokens\"",
		})
	}

	// Validate Logging config
	if c.Logging.RetentionDays < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.retention_days",
			Message: "retention_days must be non-negative",
		})
	}

	if !strings.HasPrefix(c.Logging.LogGroupName, "/") {
		errors = append(errors, ValidationError{
			Field:   "logging.log_group_name",
			Message: "log group name must start with /",
		})
	}

	return errors
}
