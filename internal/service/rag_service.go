package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"healthrag/internal/domain"
	"healthrag/internal/metrics"
	"healthrag/internal/prompt"
)

// Defaults taken from the production deployment.
const (
	DefaultTopK    = 2
	DefaultTimeout = 60 * time.Second
)

// Readier makes sure the index is built before it is queried.
type Readier interface {
	EnsureReady(ctx context.Context) error
}

// Synthesizer produces the answer for a rendered prompt.
type Synthesizer interface {
	Answer(ctx context.Context, p prompt.Rendered) (string, error)
}

// Guard screens generated answers.
type Guard interface {
	Check(answer string) error
}

// Components are the collaborators of the service.
type Components struct {
	Index       Readier
	Embedder    domain.Embedder
	Store       domain.VectorIndex
	Template    prompt.Template
	Synthesizer Synthesizer
	Guard       Guard
}

// RAGService answers questions: ensure index, retrieve, render, generate,
// screen. Each step completes before the next starts.
type RAGService struct {
	c       Components
	topK    int
	timeout time.Duration
	logger  *slog.Logger
}

var _ domain.Answerer = (*RAGService)(nil)

// Option configures a RAGService.
type Option func(*RAGService)

func WithTopK(k int) Option {
	return func(s *RAGService) { s.topK = k }
}

// WithTimeout sets the overall per-question deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *RAGService) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *RAGService) { s.logger = l }
}

func NewRAGService(c Components, opts ...Option) *RAGService {
	if c.Template == (prompt.Template{}) {
		c.Template = prompt.Default
	}
	s := &RAGService{c: c, topK: DefaultTopK, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers question. Errors carry the domain taxonomy; they are meant
// for logs, not for end users.
func (s *RAGService) Ask(ctx context.Context, question string) (string, error) {
	started := time.Now()
	answer, err := s.ask(ctx, question)
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if errors.Is(err, domain.ErrTimeout) {
			outcome = "timeout"
		}
	}
	metrics.Questions.WithLabelValues(outcome).Inc()
	metrics.QuestionSeconds.Observe(time.Since(started).Seconds())
	return answer, err
}

func (s *RAGService) ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyQuestion
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	results, err := s.Retrieve(ctx, question)
	if err != nil {
		return "", s.deadline(ctx, err)
	}
	rendered, err := s.c.Template.Render(prompt.JoinContext(results), prompt.Untrusted(question))
	if err != nil {
		return "", err
	}
	answer, err := s.c.Synthesizer.Answer(ctx, rendered)
	if err != nil {
		return "", s.deadline(ctx, err)
	}
	if s.c.Guard != nil {
		if err := s.c.Guard.Check(answer); err != nil {
			return "", err
		}
	}
	s.logger.Debug("answered question", "passages", len(results), "template", s.c.Template.Version)
	return answer, nil
}

// Retrieve returns the top-k passages for question, building the index
// first if needed.
func (s *RAGService) Retrieve(ctx context.Context, question string) ([]domain.SearchResult, error) {
	if err := s.c.Index.EnsureReady(ctx); err != nil {
		return nil, err
	}
	vecs, err := s.c.Embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for the question", domain.ErrEmbeddingService, len(vecs))
	}
	return s.c.Store.Query(vecs[0], s.topK)
}

// deadline reclassifies err as ErrTimeout when the request deadline is
// what stopped it.
func (s *RAGService) deadline(ctx context.Context, err error) error {
	if errors.Is(err, domain.ErrTimeout) || ctx.Err() == nil {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
}
