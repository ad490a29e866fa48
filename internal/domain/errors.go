package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every component. Components wrap these with
// fmt.Errorf("...: %w", err) so callers can classify with errors.Is.
var (
	ErrConfig            = errors.New("invalid configuration")
	ErrSourceUnavailable = errors.New("document source unavailable")
	ErrEmptyCorpus       = errors.New("no documents could be loaded")
	ErrEmbeddingService  = errors.New("embedding service error")
	ErrGeneration        = errors.New("answer generation failed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTemplate          = errors.New("prompt template error")
	ErrTimeout           = errors.New("deadline exceeded")
	ErrUnsafeAnswer      = errors.New("answer rejected by safety guard")
)

// ErrEmptyQuestion is the caller-side ErrInvalidArgument: a blank question.
// Other invalid arguments are internal faults.
var ErrEmptyQuestion = fmt.Errorf("%w: empty question", ErrInvalidArgument)
