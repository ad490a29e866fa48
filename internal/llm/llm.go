package llm

import "context"

// Request is a single-turn completion request.
type Request struct {
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Model generates text for a prompt.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
}
