package loader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"healthrag/internal/domain"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_OrderAndPages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second")
	writeFile(t, dir, "a.md", "page one\fpage two")
	writeFile(t, dir, "notes.json", "{}")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs, err := New(WithLogger(quietLogger())).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "a.md" || docs[1].ID != "b.txt" {
		t.Errorf("unexpected order: %s, %s", docs[0].ID, docs[1].ID)
	}
	if len(docs[0].Pages) != 2 || docs[0].Pages[1].Text != "page two" || docs[0].Pages[1].Number != 2 {
		t.Errorf("unexpected pages: %+v", docs[0].Pages)
	}
}

func TestLoad_SkipsFailingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "not a pdf")
	writeFile(t, dir, "ok.txt", "fine")
	failing := func(string) ([]domain.Page, error) { return nil, errors.New("boom") }

	docs, err := New(WithLogger(quietLogger()), WithExtractor(".PDF", failing)).Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "ok.txt" {
		t.Errorf("expected only ok.txt, got %+v", docs)
	}
}

func TestLoad_Errors(t *testing.T) {
	ld := New(WithLogger(quietLogger()))
	if _, err := ld.Load(context.Background(), filepath.Join(t.TempDir(), "missing")); !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if _, err := ld.Load(context.Background(), t.TempDir()); !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus, got %v", err)
	}

	dir := t.TempDir()
	writeFile(t, dir, "bad.pdf", "garbage")
	if _, err := ld.Load(context.Background(), dir); !errors.Is(err, domain.ErrEmptyCorpus) {
		t.Errorf("expected ErrEmptyCorpus when every file fails, got %v", err)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(WithLogger(quietLogger())).Load(ctx, dir); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtractPDF_OnePagePerPage(t *testing.T) {
	pages, err := ExtractPDF(filepath.Join("testdata", "two-pages.pdf"))
	if err != nil {
		t.Fatalf("ExtractPDF: %v", err)
	}
	want := []domain.Page{
		{Number: 1, Text: "Patients should check their levels twice daily."},
		{Number: 2, Text: "Second page text."},
	}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %+v", len(want), pages)
	}
	for i, w := range want {
		if pages[i].Number != w.Number || strings.TrimSpace(pages[i].Text) != w.Text {
			t.Errorf("page %d: got %+v want %+v", i, pages[i], w)
		}
	}

	docs, err := New(WithLogger(quietLogger())).Load(context.Background(), "testdata")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "two-pages.pdf" || len(docs[0].Pages) != 2 {
		t.Errorf("expected one two-page document, got %+v", docs)
	}
}
