package embedder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/embeddings"
)

// RuntimeAPI is the slice of the Bedrock runtime client the embedder needs.
type RuntimeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type EmbedderConfig struct {
	ModelID    string
	Dimensions int
	Normalize  bool
}

// Embedder generates text embeddings with a Titan embedding model through
// the Bedrock runtime. It satisfies langchaingo's embeddings.EmbedderClient
// so it can be wrapped for batched document/query embedding.
type Embedder struct {
	Config EmbedderConfig
	client RuntimeAPI
}

// titanRequest is the request body for amazon.titan-embed-text-v2.
type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  bool   `json:"normalize,omitempty"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

func NewWithConfig(client RuntimeAPI, config EmbedderConfig) *Embedder {
	if config.ModelID == "" {
		config.ModelID = "amazon.titan-embed-text-v2:0"
	}
	if config.Dimensions == 0 {
		config.Dimensions = 1024
	}

	return &Embedder{
		Config: config,
		client: client,
	}
}

// CreateEmbedding embeds each text with one runtime call per input; the
// Titan embedding API takes a single inputText per request.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for _, text := range texts {
		body, err := json.Marshal(titanRequest{
			InputText:  text,
			Dimensions: e.Config.Dimensions,
			Normalize:  e.Config.Normalize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding request: %w", err)
		}

		out, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(e.Config.ModelID),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding invocation failed: %w", err)
		}

		var resp titanResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode embedding response: %w", err)
		}

		if len(resp.Embedding) != e.Config.Dimensions {
			return nil, fmt.Errorf("model returned %d dimensions, expected %d",
				len(resp.Embedding), e.Config.Dimensions)
		}

		vectors = append(vectors, resp.Embedding)
	}

	return vectors, nil
}

func (e *Embedder) Dimensions() int {
	return e.Config.Dimensions
}

// NewEmbedder wraps the Titan client in langchaingo's batching embedder.
func NewEmbedder(client RuntimeAPI, config EmbedderConfig, opts ...embeddings.Option) (*embeddings.EmbedderImpl, error) {
	return embeddings.NewEmbedder(NewWithConfig(client, config), opts...)
}

// FlattenEmbeddings concatenates per-text vectors into one slice, used when
// a single query produced a single embedding.
func FlattenEmbeddings(embeddings [][]float32) []float32 {
	var flattened []float32
	for _, emb := range embeddings {
		flattened = append(flattened, emb...)
	}
	return flattened
}
