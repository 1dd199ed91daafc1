package types

import (
	"context"

	"github.com/ahagan/strata/internal/models"
)

// Core interfaces
type Loader interface {
	Load(ctx context.Context) ([]models.Document, error)
}

type Splitter interface {
	Split(docs []models.Document) ([]models.ProcessedDocument, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

type VectorStore interface {
	Store(ctx context.Context, docs []models.ProcessedDocument) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.ScoredDocument, error)
	Close()
}

// ChatModel generates an answer to a query given retrieved context.
type ChatModel interface {
	Chat(ctx context.Context, query string, docs []models.ScoredDocument) (string, error)
	ChatStream(ctx context.Context, query string, docs []models.ScoredDocument) (<-chan string, error)
}
