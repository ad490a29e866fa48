package embedding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"healthrag/internal/domain"
	"healthrag/internal/retry"
)

// fakeEmbedder encodes the numeric suffix of each text as a 1-d vector.
type fakeEmbedder struct {
	mu       sync.Mutex
	calls    int
	maxBatch int
	failures int
	prepared []string
}

func (f *fakeEmbedder) Name() string   { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 1 }

func (f *fakeEmbedder) Prepare(_ context.Context, corpus []string) error {
	f.prepared = corpus
	return nil
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls++
	if len(texts) > f.maxBatch {
		f.maxBatch = len(texts)
	}
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("upstream 503")
	}
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n int
		fmt.Sscanf(t, "text-%d", &n)
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBatched_PreservesOrderAndBoundsBatches(t *testing.T) {
	f := &fakeEmbedder{}
	b := NewBatched(f, WithBatchSize(3), WithParallelism(4), WithLogger(quiet()))
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}
	vecs, err := b.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range vecs {
		if v[0] != float32(i) {
			t.Errorf("vector %d out of order: %v", i, v)
		}
	}
	if f.calls != 4 || f.maxBatch != 3 {
		t.Errorf("calls=%d maxBatch=%d", f.calls, f.maxBatch)
	}
}

func TestBatched_RetriesThenFails(t *testing.T) {
	f := &fakeEmbedder{failures: 1}
	b := NewBatched(f, WithRetryPolicy(retry.Policy{MaxRetries: 2}), WithLogger(quiet()))
	if _, err := b.Embed(context.Background(), []string{"text-1"}); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}

	f = &fakeEmbedder{failures: 10}
	b = NewBatched(f, WithRetryPolicy(retry.Policy{MaxRetries: 2}), WithLogger(quiet()))
	_, err := b.Embed(context.Background(), []string{"text-1"})
	if !errors.Is(err, domain.ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}
	if f.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", f.calls)
	}
}

func TestBatched_PrepareForwards(t *testing.T) {
	f := &fakeEmbedder{}
	b := NewBatched(f)
	if err := b.Prepare(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	if len(f.prepared) != 2 {
		t.Errorf("Prepare not forwarded")
	}
}
