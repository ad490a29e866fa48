package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"healthrag/internal/domain"
	"healthrag/internal/metrics"
	"healthrag/internal/retry"
)

// Embedder converts free text into numeric vectors, one per input, in order.
type Embedder = domain.Embedder

// Preparer is implemented by embedders that must see the corpus before
// embedding, such as TF-IDF.
type Preparer interface {
	Prepare(ctx context.Context, corpus []string) error
}

// DefaultBatchSize bounds the number of texts sent in one upstream request.
const DefaultBatchSize = 512

// Batched splits requests into bounded batches, retries each batch and
// reassembles the vectors in input order.
type Batched struct {
	inner       Embedder
	batchSize   int
	parallelism int
	policy      retry.Policy
	logger      *slog.Logger
}

// BatchOption configures a Batched embedder.
type BatchOption func(*Batched)

func WithBatchSize(n int) BatchOption {
	return func(b *Batched) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithParallelism(n int) BatchOption {
	return func(b *Batched) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

func WithRetryPolicy(p retry.Policy) BatchOption {
	return func(b *Batched) { b.policy = p }
}

func WithLogger(l *slog.Logger) BatchOption {
	return func(b *Batched) { b.logger = l }
}

// NewBatched wraps inner.
func NewBatched(inner Embedder, opts ...BatchOption) *Batched {
	b := &Batched{
		inner:       inner,
		batchSize:   DefaultBatchSize,
		parallelism: 4,
		policy:      retry.Default(3),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.policy.OnRetry == nil {
		b.policy.OnRetry = func(attempt int, err error) {
			metrics.UpstreamRetries.WithLabelValues("embedding").Inc()
			b.logger.Warn("retrying embedding batch", "embedder", b.inner.Name(), "attempt", attempt, "error", err)
		}
	}
	return b
}

func (b *Batched) Name() string { return b.inner.Name() }

func (b *Batched) Dimension() int { return b.inner.Dimension() }

// Prepare forwards to the wrapped embedder when it needs the corpus.
func (b *Batched) Prepare(ctx context.Context, corpus []string) error {
	if p, ok := b.inner.(Preparer); ok {
		return p.Prepare(ctx, corpus)
	}
	return nil
}

// Embed returns one vector per text, in input order. A batch that still
// fails after retries fails the whole call with ErrEmbeddingService.
func (b *Batched) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := retry.Do(gctx, b.policy, func(ctx context.Context) ([][]float32, error) {
				return b.inner.Embed(ctx, texts[start:end])
			})
			if err != nil {
				return fmt.Errorf("%w: batch [%d:%d]: %w", domain.ErrEmbeddingService, start, end, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("%w: batch [%d:%d]: got %d vectors", domain.ErrEmbeddingService, start, end, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
