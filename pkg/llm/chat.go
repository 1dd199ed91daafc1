package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/bedrock"

	"github.com/ahagan/strata/internal/models"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	ModelID         string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	CiteSources     bool
}

// ChatEngine answers questions over retrieved context with a Bedrock-hosted
// model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by the given Bedrock
// runtime client.
func NewWithConfig(client *bedrockruntime.Client, config ChatConfig) (*ChatEngine, error) {
	if config.ModelID == "" {
		config.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a helpful assistant with access to the following documentation. Answer questions based on this context."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Relevant documentation:\n%s\nQuestion: %s"
	}

	model, err := bedrock.New(
		bedrock.WithModel(config.ModelID),
		bedrock.WithClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Chat generates a response based on the query and context documents.
func (ce *ChatEngine) Chat(ctx context.Context, query string, docs []models.ScoredDocument) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, ce.buildMessages(query, docs),
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	answer := response.Choices[0].Content
	if ce.config.CiteSources {
		answer += ce.formatSources(docs)
	}

	return answer, nil
}

// ChatStream generates a stream of response chunks based on the query and
// context documents. The channel is closed when the model finishes; an
// error mid-stream is delivered as a final "Error:" chunk.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, docs []models.ScoredDocument) (<-chan string, error) {
	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		_, err := ce.llm.GenerateContent(ctx, ce.buildMessages(query, docs),
			llms.WithMaxTokens(ce.config.MaxTokens),
			llms.WithTemperature(ce.config.Temperature),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				select {
				case resultChan <- string(chunk):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}),
		)
		if err != nil {
			resultChan <- fmt.Sprintf("Error: %v", err)
			return
		}

		if ce.config.CiteSources {
			if sources := ce.formatSources(docs); sources != "" {
				resultChan <- sources
			}
		}
	}()

	return resultChan, nil
}

// buildMessages assembles the system prompt and the context-plus-question
// user message.
func (ce *ChatEngine) buildMessages(query string, docs []models.ScoredDocument) []llms.MessageContent {
	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", doc.Source, doc.Content))
	}

	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf(ce.config.ContextTemplate, contextBuilder.String(), query)),
	}
}

// formatSources formats the retrieved sources for citation.
func (ce *ChatEngine) formatSources(docs []models.ScoredDocument) string {
	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		if !seen[doc.Source] {
			sources = append(sources, doc.Source)
			seen[doc.Source] = true
		}
	}

	if len(sources) == 0 {
		return ""
	}

	return fmt.Sprintf("\n\nSources:\n%s", strings.Join(sources, "\n"))
}
