package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"healthrag/internal/domain"
)

// Extractor turns one file into its ordered pages.
type Extractor func(path string) ([]domain.Page, error)

// Loader enumerates the corpus directory and extracts every supported file.
type Loader struct {
	extractors map[string]Extractor
	logger     *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used to report skipped files.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithExtractor registers (or replaces) the extractor for a file extension
// such as ".pdf".
func WithExtractor(ext string, fn Extractor) Option {
	return func(ld *Loader) { ld.extractors[strings.ToLower(ext)] = fn }
}

// New creates a loader that understands .pdf, .txt and .md files.
func New(opts ...Option) *Loader {
	ld := &Loader{
		extractors: map[string]Extractor{
			".pdf": ExtractPDF,
			".txt": ExtractText,
			".md":  ExtractText,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load reads all supported documents in dir in directory-listing order.
// Files that fail to extract are logged and skipped; if nothing loads the
// result is ErrEmptyCorpus.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, dir, err)
	}
	var documents []domain.Document
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		extract, ok := l.extractors[strings.ToLower(filepath.Ext(e.Name()))]
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		pages, err := extract(path)
		if err != nil {
			l.logger.Warn("skipping document", "path", path, "error", err)
			continue
		}
		documents = append(documents, domain.Document{ID: e.Name(), Path: path, Pages: pages})
		l.logger.Debug("loaded document", "path", path, "pages", len(pages))
	}
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyCorpus, dir)
	}
	return documents, nil
}

// ExtractText reads a plain-text or markdown file. Form feeds separate pages.
func ExtractText(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]domain.Page, len(parts))
	for i, p := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: p}
	}
	return pages, nil
}

// ExtractPDF returns the plain text of every page of a PDF file.
func ExtractPDF(path string) (pages []domain.Page, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("parse %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}
