// Package index owns the process-wide vector index and guarantees it is
// built at most once at a time, shared by every concurrent first caller.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"healthrag/internal/domain"
	"healthrag/internal/embedding"
	"healthrag/internal/metrics"
)

// State of the managed index.
type State int

const (
	Uninitialized State = iota
	Building
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Building:
		return "building"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// attempt is the latch shared by every caller waiting on one build.
type attempt struct {
	done chan struct{}
	err  error
}

// Manager runs the ingestion pipeline (load, chunk, embed, index) lazily.
// A failed build leaves the index empty and the state Uninitialized so the
// next caller retries from scratch.
type Manager struct {
	dir      string
	loader   domain.CorpusLoader
	chunker  domain.Chunker
	embedder domain.Embedder
	index    domain.VectorIndex

	logger       *slog.Logger
	buildTimeout time.Duration

	mu      sync.Mutex
	state   State
	current *attempt
	builds  atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBuildTimeout bounds a single build. Zero means no bound.
func WithBuildTimeout(d time.Duration) Option {
	return func(m *Manager) { m.buildTimeout = d }
}

// NewManager wires the pipeline stages for the corpus in dir.
func NewManager(dir string, loader domain.CorpusLoader, chunker domain.Chunker, embedder domain.Embedder, index domain.VectorIndex, opts ...Option) *Manager {
	m := &Manager{
		dir:      dir,
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Builds is the number of pipeline executions started so far.
func (m *Manager) Builds() int { return int(m.builds.Load()) }

// EnsureReady returns once the index is populated. The first caller starts
// the build; callers arriving while it runs wait for the same outcome. The
// build runs detached from ctx: a caller giving up gets ErrTimeout while
// the build carries on for the others.
func (m *Manager) EnsureReady(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Ready:
		m.mu.Unlock()
		return nil
	case Uninitialized:
		m.current = &attempt{done: make(chan struct{})}
		m.state = Building
		m.builds.Add(1)
		go m.run(context.WithoutCancel(ctx), m.current)
	}
	a := m.current
	m.mu.Unlock()

	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for index build: %w", domain.ErrTimeout, ctx.Err())
	}
}

func (m *Manager) run(ctx context.Context, a *attempt) {
	if m.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.buildTimeout)
		defer cancel()
	}
	started := time.Now()
	m.logger.Info("building index", "dir", m.dir, "embedder", m.embedder.Name())
	n, err := m.safeBuild(ctx)

	m.mu.Lock()
	if err != nil {
		m.index.Reset()
		m.state = Uninitialized
	} else {
		m.state = Ready
	}
	m.current = nil
	a.err = err
	close(a.done)
	m.mu.Unlock()

	elapsed := time.Since(started)
	metrics.IndexBuildSeconds.Observe(elapsed.Seconds())
	if err != nil {
		metrics.IndexBuilds.WithLabelValues("failure").Inc()
		metrics.IndexEntries.Set(0)
		m.logger.Error("index build failed", "dir", m.dir, "elapsed", elapsed, "error", err)
		return
	}
	metrics.IndexBuilds.WithLabelValues("success").Inc()
	metrics.IndexEntries.Set(float64(n))
	m.logger.Info("index ready", "entries", n, "elapsed", elapsed)
}

// safeBuild turns a panic in a pipeline stage into a build error so the
// waiters are released and the next caller can retry.
func (m *Manager) safeBuild(ctx context.Context) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("index build panicked: %v", r)
		}
	}()
	return m.build(ctx)
}

func (m *Manager) build(ctx context.Context) (int, error) {
	docs, err := m.loader.Load(ctx, m.dir)
	if err != nil {
		return 0, err
	}
	var passages []domain.Passage
	for _, d := range docs {
		for p := range m.chunker.Passages(d) {
			passages = append(passages, p)
		}
	}
	if len(passages) == 0 {
		return 0, fmt.Errorf("%w: %d documents contain no text", domain.ErrEmptyCorpus, len(docs))
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	if p, ok := m.embedder.(embedding.Preparer); ok {
		if err := p.Prepare(ctx, texts); err != nil {
			return 0, fmt.Errorf("%w: prepare: %w", domain.ErrEmbeddingService, err)
		}
	}
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(passages) {
		return 0, fmt.Errorf("%w: got %d vectors for %d passages", domain.ErrEmbeddingService, len(vectors), len(passages))
	}
	entries := make([]domain.Entry, len(passages))
	for i := range passages {
		entries[i] = domain.Entry{Vector: vectors[i], Passage: passages[i]}
	}
	if err := m.index.Build(entries); err != nil {
		return 0, err
	}
	m.logger.Debug("indexed corpus", "documents", len(docs), "passages", len(passages))
	return len(entries), nil
}
