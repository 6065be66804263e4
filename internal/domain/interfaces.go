package domain

import "context"

// Textbook is the raw text of one PDF file found under the textbooks folder.
type Textbook struct {
	Path     string
	Category string
	Filename string
	Content  string
}

// Metadata records where a chunk came from.
type Metadata struct {
	Path     string `msgpack:"path"`
	Category string `msgpack:"category"`
	Filename string `msgpack:"filename"`
	ChunkID  int    `msgpack:"chunk_id"`
}

// DocumentChunk is a bounded slice of a textbook's text used for indexing.
type DocumentChunk struct {
	Content  string   `msgpack:"content"`
	Metadata Metadata `msgpack:"metadata"`
}

// SearchResult represents a matching chunk with a relevance score.
// Score is in (0, 1], higher meaning more similar.
type SearchResult struct {
	Chunk DocumentChunk
	Score float64
}

// Chunker splits long text into overlapping windows.
type Chunker interface {
	Split(content string) []string
}

// TextbookLoader discovers textbooks and extracts their text.
type TextbookLoader interface {
	LoadTextbooks(ctx context.Context) ([]Textbook, error)
}

// Retriever ranks indexed chunks against a free-text query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// Generator produces an answer from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is the outcome of a question answered against the store.
type Answer struct {
	Question string
	Response string
	Sources  []SearchResult
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Build(ctx context.Context, textbooksDir, outputPath string) (BuildSummary, error)
	Query(ctx context.Context, question string, k int) (Answer, error)
}

// BuildSummary describes the result of a build run.
type BuildSummary struct {
	Textbooks int
	Chunks    int
	Indexed   int
	Dropped   int
	Output    string
}
