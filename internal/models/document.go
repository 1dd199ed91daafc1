package models

// Document is a single loaded document before chunking. Source is the URL
// or file path it was loaded from.
type Document struct {
	ID       string
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks     []string
	Embeddings [][]float32
}

// ScoredDocument is a retrieval hit together with its cosine distance to
// the query embedding. Lower is closer.
type ScoredDocument struct {
	Document
	Distance float32
}
