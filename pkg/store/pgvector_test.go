package store

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahagan/strata/internal/models"
)

// staticEmbedder answers with a fixed-width vector derived from text
// length, good enough to exercise storage and ordering.
type staticEmbedder struct {
	dim int
}

func (s staticEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, s.dim)
		for j := range v {
			v[j] = float32((len(text)+j)%7) / 7
		}
		vectors[i] = v
	}
	return vectors, nil
}

func TestNewWithConfigRequiresEmbedder(t *testing.T) {
	_, err := NewWithConfig(context.Background(), VectorStoreConfig{}, nil)
	assert.Error(t, err)
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean", "plain text", "plain text"},
		{"invalid byte", "bad\xffbyte", "badbyte"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeUTF8(tt.input))
		})
	}
}

// TestVectorStoreRoundTrip needs a local postgres with pgvector. It is
// skipped unless DATABASE_URL is set.
func TestVectorStoreRoundTrip(t *testing.T) {
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	emb := staticEmbedder{dim: 64}

	vs, err := NewWithConfig(ctx, VectorStoreConfig{
		ConnString: connString,
		TableName:  "test_documents",
		VectorDim:  64,
	}, emb)
	require.NoError(t, err)
	defer vs.Close()

	docs := []models.ProcessedDocument{
		{
			Document: models.Document{
				ID:     "test1",
				Source: "https://example.com/1",
				Title:  "Test Document 1",
				Metadata: map[string]interface{}{
					"source": "test",
				},
			},
			Chunks: []string{
				"This is chunk 1",
				"This is chunk 2",
				"This is chunk 3",
			},
		},
	}

	err = vs.Store(ctx, docs)
	require.NoError(t, err)

	results, err := vs.Search(ctx, "chunk 1", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/1", results[0].Source)

	// Upsert keeps the row count stable
	err = vs.Store(ctx, docs)
	require.NoError(t, err)

	var count int
	err = vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.config.TableName)).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
