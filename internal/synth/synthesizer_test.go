package synth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"healthrag/internal/domain"
	"healthrag/internal/llm"
	"healthrag/internal/retry"
)

type scriptedModel struct {
	mu       sync.Mutex
	failures int
	calls    int
	answer   string
	lastReq  llm.Request
}

func (m *scriptedModel) Complete(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastReq = req
	if m.failures > 0 {
		m.failures--
		return "", errors.New("503 from provider")
	}
	return m.answer, nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func noDelay(n int) Option { return WithRetryPolicy(retry.Policy{MaxRetries: n}) }

func TestAnswer_RetriesTransientFailures(t *testing.T) {
	m := &scriptedModel{failures: 2, answer: "  Revise sus niveles dos veces al día.  "}
	s := New(m, noDelay(2), WithLogger(quiet()))
	got, err := s.Answer(context.Background(), "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Revise sus niveles dos veces al día." {
		t.Errorf("unexpected answer %q", got)
	}
	if m.calls != 3 {
		t.Errorf("expected 3 calls, got %d", m.calls)
	}
	if m.lastReq.Temperature != 0 || m.lastReq.Prompt != "prompt" {
		t.Errorf("unexpected request %+v", m.lastReq)
	}
}

func TestAnswer_ExhaustedRetries(t *testing.T) {
	m := &scriptedModel{failures: 3, answer: "never"}
	s := New(m, noDelay(2), WithLogger(quiet()))
	_, err := s.Answer(context.Background(), "prompt")
	if !errors.Is(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if m.calls != 3 {
		t.Errorf("expected 3 calls, got %d", m.calls)
	}
}

func TestAnswer_EmptyCompletionIsAnError(t *testing.T) {
	s := New(&scriptedModel{answer: "   "}, noDelay(0), WithLogger(quiet()))
	if _, err := s.Answer(context.Background(), "p"); !errors.Is(err, domain.ErrGeneration) {
		t.Errorf("expected ErrGeneration, got %v", err)
	}
}

type blockingModel struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	release  chan struct{}
}

func (m *blockingModel) Complete(ctx context.Context, _ llm.Request) (string, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-m.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "ok", nil
}

func TestAnswer_BoundsConcurrency(t *testing.T) {
	m := &blockingModel{release: make(chan struct{})}
	s := New(m, WithLogger(quiet()))
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Answer(context.Background(), "p"); err != nil {
				t.Error(err)
			}
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for m.inFlight.Load() < DefaultMaxConcurrency && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(m.release)
	wg.Wait()
	if p := m.peak.Load(); p != DefaultMaxConcurrency {
		t.Errorf("expected peak of %d in-flight calls, got %d", DefaultMaxConcurrency, p)
	}
}

func TestAnswer_DeadlineIsTimeout(t *testing.T) {
	m := &blockingModel{release: make(chan struct{})}
	s := New(m, noDelay(2), WithLogger(quiet()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Answer(ctx, "p"); !errors.Is(err, domain.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
