package memory

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"healthrag/internal/domain"
)

// Index is an in-memory vector index using brute-force cosine similarity.
// Build replaces the whole entry set at once; readers never observe a
// partially loaded index.
type Index struct {
	mu        sync.RWMutex
	dimension int
	entries   []domain.Entry
	norms     []float64
}

var _ domain.VectorIndex = (*Index)(nil)

func NewIndex() *Index { return &Index{} }

// Build validates and installs entries, replacing any previous state.
func (s *Index) Build(entries []domain.Entry) error {
	dim := 0
	if len(entries) > 0 {
		dim = len(entries[0].Vector)
	}
	norms := make([]float64, len(entries))
	for i, e := range entries {
		if len(e.Vector) == 0 || len(e.Vector) != dim {
			return fmt.Errorf("%w: entry %d has dimension %d, want %d", domain.ErrInvalidArgument, i, len(e.Vector), dim)
		}
		norms[i] = norm(e.Vector)
	}
	own := slices.Clone(entries)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dim
	s.entries = own
	s.norms = norms
	return nil
}

// Query returns up to k entries by descending cosine similarity. Equal
// scores keep insertion order.
func (s *Index) Query(vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidArgument, k)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", domain.ErrInvalidArgument, len(vector), s.dimension)
	}
	qn := norm(vector)
	results := make([]domain.SearchResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = domain.SearchResult{Passage: e.Passage, Score: cosine(vector, e.Vector, qn, s.norms[i])}
	}
	slices.SortStableFunc(results, func(a, b domain.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Len returns the number of indexed entries.
func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every entry.
func (s *Index) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = 0
	s.entries = nil
	s.norms = nil
}

func cosine(a, b []float32, na, nb float64) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum / (na * nb))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
