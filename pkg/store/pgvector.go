package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ahagan/strata/internal/models"
)

// Embedder is the slice of the embedding client the store needs to embed
// chunks at write time and queries at read time.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStoreConfig struct {
	ConnString     string
	TableName      string
	VectorDim      int
	BatchSize      int
	SearchLimit    int
	SearchDistance float32
}

type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder Embedder) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1024 // Titan v2 default
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}
	if embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

// Store embeds every chunk and upserts it keyed by document ID plus chunk
// index, in a single transaction.
func (vs *VectorStore) Store(ctx context.Context, docs []models.ProcessedDocument) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	for _, doc := range docs {
		cleanTitle := sanitizeUTF8(doc.Title)

		for i, chunk := range doc.Chunks {
			cleanChunk := sanitizeUTF8(chunk)
			id := fmt.Sprintf("%s_%d", doc.ID, i)

			var vector []float32
			if i < len(doc.Embeddings) {
				// Pipeline already embedded this chunk
				vector = doc.Embeddings[i]
			} else {
				embedded, err := vs.embedder.CreateEmbedding(ctx, []string{cleanChunk})
				if err != nil {
					return fmt.Errorf("failed to create embeddings: %v", err)
				}
				if len(embedded) != 1 {
					return fmt.Errorf("expected one embedding, got %d", len(embedded))
				}
				vector = embedded[0]
			}

			_, err = tx.Exec(ctx, stmt,
				id,
				doc.Source,
				cleanTitle,
				cleanChunk,
				i,
				pgvector.NewVector(vector),
				doc.Metadata,
			)
			if err != nil {
				return fmt.Errorf("failed to insert document: %v", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Query returns the documents closest to the query embedding under cosine
// distance, nearest first.
func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ScoredDocument, error) {
	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, source, title, content, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	embedding := pgvector.NewVector(queryEmbedding)
	rows, err := vs.pool.Query(ctx, query, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	var docs []models.ScoredDocument
	for rows.Next() {
		var doc models.ScoredDocument
		err := rows.Scan(
			&doc.ID,
			&doc.Source,
			&doc.Title,
			&doc.Content,
			&doc.Metadata,
			&doc.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}

		if vs.config.SearchDistance > 0 && doc.Distance > vs.config.SearchDistance {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Search embeds the query text and runs a similarity query in one call.
func (vs *VectorStore) Search(ctx context.Context, query string, limit int) ([]models.ScoredDocument, error) {
	embedded, err := vs.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %v", err)
	}
	if len(embedded) != 1 {
		return nil, fmt.Errorf("expected one embedding, got %d", len(embedded))
	}

	return vs.Query(ctx, embedded[0], limit)
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
