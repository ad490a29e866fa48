package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"healthrag/internal/domain"
	"healthrag/internal/llm"
	"healthrag/internal/metrics"
	"healthrag/internal/prompt"
	"healthrag/internal/retry"
)

// Defaults for the upstream model.
const (
	DefaultMaxConcurrency = 5
	DefaultMaxRetries     = 2
)

// Synthesizer turns a rendered prompt into an answer with deterministic
// decoding, a ceiling on in-flight model calls and bounded retries.
type Synthesizer struct {
	model     llm.Model
	sem       *semaphore.Weighted
	policy    retry.Policy
	maxTokens int
	logger    *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

func WithMaxConcurrency(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRetryPolicy replaces the retry policy; MaxRetries is the number of
// retries after the first attempt.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Synthesizer) { s.policy = p }
}

func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) { s.maxTokens = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// New returns a synthesizer calling model.
func New(model llm.Model, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		model:  model,
		sem:    semaphore.NewWeighted(DefaultMaxConcurrency),
		policy: retry.Default(DefaultMaxRetries),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.OnRetry == nil {
		s.policy.OnRetry = func(attempt int, err error) {
			metrics.UpstreamRetries.WithLabelValues("generation").Inc()
			s.logger.Warn("retrying generation", "attempt", attempt, "error", err)
		}
	}
	return s
}

// Answer generates the answer for p. Failures after the retry budget, and
// empty completions, are reported as ErrGeneration.
func (s *Synthesizer) Answer(ctx context.Context, p prompt.Rendered) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for model slot: %w", domain.ErrTimeout, err)
	}
	defer s.sem.Release(1)

	req := llm.Request{Prompt: string(p), Temperature: 0, MaxTokens: s.maxTokens}
	answer, err := retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
		out, err := s.model.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(out) == "" {
			return "", errEmptyCompletion
		}
		return out, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrTimeout, ctxErr)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	return strings.TrimSpace(answer), nil
}

var errEmptyCompletion = errors.New("empty completion")
