// Package invoke calls Bedrock-hosted models through the two runtime
// APIs: the raw InvokeModel body protocol and the model-agnostic Converse
// protocol. Either accepts a foundation-model ID or a cross-region
// inference-profile ID.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	rtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/ahagan/strata/internal/models"
)

// RuntimeAPI is the slice of the Bedrock runtime client the invoker needs.
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

const anthropicVersion = "bedrock-2023-05-31"

type InvokerConfig struct {
	ModelID     string
	MaxTokens   int
	Temperature float64
	System      string
}

type Invoker struct {
	config InvokerConfig
	client RuntimeAPI
}

func NewWithConfig(client RuntimeAPI, config InvokerConfig) (*Invoker, error) {
	if config.ModelID == "" {
		return nil, fmt.Errorf("invoker requires a model or inference profile ID")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return nil, fmt.Errorf("temperature must be between 0 and 1")
	}

	return &Invoker{
		config: config,
		client: client,
	}, nil
}

// anthropicRequest is the InvokeModel body for Anthropic models on
// Bedrock.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature,omitempty"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      struct {
		InputTokens  int32 `json:"input_tokens"`
		OutputTokens int32 `json:"output_tokens"`
	} `json:"usage"`
}

// InvokeModel sends the prompt through the raw InvokeModel API with the
// Anthropic messages body schema.
func (iv *Invoker) InvokeModel(ctx context.Context, prompt string) (models.Completion, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        iv.config.MaxTokens,
		Temperature:      iv.config.Temperature,
		System:           iv.config.System,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: []anthropicContent{{Type: "text", Text: prompt}},
			},
		},
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to encode request: %w", err)
	}

	out, err := iv.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(iv.config.ModelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return models.Completion{}, fmt.Errorf("InvokeModel failed for %s: %w", iv.config.ModelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return models.Completion{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return models.Completion{
		Text:       text,
		StopReason: resp.StopReason,
		ModelID:    iv.config.ModelID,
		Usage: models.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

// Converse sends the prompt through the typed Converse API.
func (iv *Invoker) Converse(ctx context.Context, prompt string) (models.Completion, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(iv.config.ModelID),
		Messages: []rtypes.Message{
			{
				Role: rtypes.ConversationRoleUser,
				Content: []rtypes.ContentBlock{
					&rtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &rtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(iv.config.MaxTokens)),
			Temperature: aws.Float32(float32(iv.config.Temperature)),
		},
	}
	if iv.config.System != "" {
		input.System = []rtypes.SystemContentBlock{
			&rtypes.SystemContentBlockMemberText{Value: iv.config.System},
		}
	}

	out, err := iv.client.Converse(ctx, input)
	if err != nil {
		return models.Completion{}, fmt.Errorf("Converse failed for %s: %w", iv.config.ModelID, err)
	}

	completion := models.Completion{
		StopReason: string(out.StopReason),
		ModelID:    iv.config.ModelID,
	}
	if out.Usage != nil {
		completion.Usage = models.Usage{
			InputTokens:  aws.ToInt32(out.Usage.InputTokens),
			OutputTokens: aws.ToInt32(out.Usage.OutputTokens),
			TotalTokens:  aws.ToInt32(out.Usage.TotalTokens),
		}
	}

	message, ok := out.Output.(*rtypes.ConverseOutputMemberMessage)
	if !ok {
		return models.Completion{}, fmt.Errorf("unexpected output type %T", out.Output)
	}

	for _, block := range message.Value.Content {
		if text, ok := block.(*rtypes.ContentBlockMemberText); ok {
			completion.Text += text.Value
		}
	}

	return completion, nil
}

// ConverseStream sends the prompt through the streaming Converse API and
// forwards text deltas on the returned channel. The channel is closed when
// the stream ends; a mid-stream failure arrives as a final "Error:" chunk.
func (iv *Invoker) ConverseStream(ctx context.Context, prompt string) (<-chan string, error) {
	input := &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(iv.config.ModelID),
		Messages: []rtypes.Message{
			{
				Role: rtypes.ConversationRoleUser,
				Content: []rtypes.ContentBlock{
					&rtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
		InferenceConfig: &rtypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(iv.config.MaxTokens)),
			Temperature: aws.Float32(float32(iv.config.Temperature)),
		},
	}
	if iv.config.System != "" {
		input.System = []rtypes.SystemContentBlock{
			&rtypes.SystemContentBlockMemberText{Value: iv.config.System},
		}
	}

	out, err := iv.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ConverseStream failed for %s: %w", iv.config.ModelID, err)
	}

	resultChan := make(chan string)
	go forwardDeltas(ctx, out.GetStream(), resultChan)
	return resultChan, nil
}

// converseStream is the slice of *bedrockruntime.ConverseStreamEventStream
// the forwarder consumes.
type converseStream interface {
	Events() <-chan rtypes.ConverseStreamOutput
	Close() error
	Err() error
}

// forwardDeltas relays text deltas onto resultChan until the stream drains
// or ctx is cancelled. Every send is guarded so an abandoned consumer never
// strands the goroutine.
func forwardDeltas(ctx context.Context, stream converseStream, resultChan chan<- string) {
	defer close(resultChan)
	defer stream.Close()

	for event := range stream.Events() {
		delta, ok := event.(*rtypes.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		if text, ok := delta.Value.Delta.(*rtypes.ContentBlockDeltaMemberText); ok {
			select {
			case resultChan <- text.Value:
			case <-ctx.Done():
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		select {
		case resultChan <- fmt.Sprintf("Error: %v", err):
		case <-ctx.Done():
		}
	}
}
