package chunker

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"

	"healthrag/internal/domain"
)

// Default sizes, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// separators are tried in order when looking for a natural cut point.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

// RecursiveChunker splits page text into fixed-size overlapping passages,
// preferring paragraph, line, sentence and word boundaries before falling
// back to a hard cut. No character is dropped: passage i+1 starts exactly
// chunkOverlap characters before passage i ends.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
}

// New returns a chunker; it fails with ErrConfig unless 0 <= overlap < size.
func New(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", domain.ErrConfig, chunkOverlap, chunkSize)
	}
	return &RecursiveChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Passages lazily yields the passages of every page of the document.
// The sequence can be ranged any number of times.
func (c *RecursiveChunker) Passages(document domain.Document) iter.Seq[domain.Passage] {
	return func(yield func(domain.Passage) bool) {
		for _, page := range document.Pages {
			if strings.TrimSpace(page.Text) == "" {
				continue
			}
			runes := []rune(page.Text)
			start, idx := 0, 0
			for {
				end := c.cut(runes, start)
				p := domain.Passage{
					DocumentID: document.ID,
					PassageID:  document.ID + ":" + strconv.Itoa(page.Number) + ":" + strconv.Itoa(idx),
					Page:       page.Number,
					Index:      idx,
					Start:      start,
					End:        end,
					Text:       string(runes[start:end]),
				}
				if !yield(p) {
					return
				}
				if end >= len(runes) {
					break
				}
				start = end - c.chunkOverlap
				idx++
			}
		}
	}
}

// Chunk collects all passages of the document.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Passage, error) {
	return slices.Collect(c.Passages(document)), nil
}

// cut returns the exclusive end of the passage starting at start. The cut
// always lies beyond start+chunkOverlap so the following passage advances.
func (c *RecursiveChunker) cut(runes []rune, start int) int {
	limit := start + c.chunkSize
	if limit >= len(runes) {
		return len(runes)
	}
	window := runes[start:limit]
	for _, sep := range separators {
		i := lastIndex(window, sep)
		if i < 0 {
			continue
		}
		if end := start + i + len(sep); end > start+c.chunkOverlap {
			return end
		}
	}
	return limit
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if slices.Equal(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
