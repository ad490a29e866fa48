package domain

import (
	"context"
	"iter"
)

// Page is one raw text block of a source document, in reading order.
type Page struct {
	Number int
	Text   string
}

// Document represents a single source file loaded from the corpus directory.
type Document struct {
	ID    string
	Path  string
	Pages []Page
}

// Passage is a bounded slice of page text used as the unit of retrieval.
// Start and End are rune offsets into the page text.
type Passage struct {
	DocumentID string
	PassageID  string
	Page       int
	Index      int
	Start      int
	End        int
	Text       string
}

// Entry pairs a passage with its embedding vector.
type Entry struct {
	Vector  []float32
	Passage Passage
}

// SearchResult represents a matching passage with a relevance score.
type SearchResult struct {
	Passage Passage
	Score   float32
}

// Chunker splits documents into passages suitable for retrieval indexing.
type Chunker interface {
	Passages(document Document) iter.Seq[Passage]
}

// CorpusLoader reads every supported document under a directory.
type CorpusLoader interface {
	Load(ctx context.Context, dir string) ([]Document, error)
}

// Embedder converts free text into numeric vectors, one per input, in order.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex holds index entries and answers nearest-neighbour queries.
type VectorIndex interface {
	Build(entries []Entry) error
	Query(vector []float32, k int) ([]SearchResult, error)
	Len() int
	Reset()
}

// Answerer is the question-in / answer-out contract exposed by the core.
type Answerer interface {
	Ask(ctx context.Context, question string) (string, error)
}
