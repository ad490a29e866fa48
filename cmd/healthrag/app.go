package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"healthrag/internal/chunker"
	"healthrag/internal/config"
	"healthrag/internal/domain"
	"healthrag/internal/embedding"
	embopenai "healthrag/internal/embedding/openai"
	"healthrag/internal/embedding/tfidf"
	"healthrag/internal/index"
	llmopenai "healthrag/internal/llm/openai"
	"healthrag/internal/loader"
	"healthrag/internal/prompt"
	"healthrag/internal/retry"
	"healthrag/internal/safety"
	"healthrag/internal/service"
	"healthrag/internal/synth"
	"healthrag/internal/vectorstore/memory"
)

// app is the fully wired engine shared by every subcommand.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	manager *index.Manager
	service *service.RAGService
}

func newApp(cfgPath string, logOut io.Writer) (*app, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedKey, llmKey, err := cfg.RequireCredentials()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	emb, err := newEmbedder(cfg.Embedder, embedKey, logger)
	if err != nil {
		return nil, err
	}
	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store := memory.NewIndex()
	manager := index.NewManager(cfg.Corpus.Dir, loader.New(loader.WithLogger(logger)), ch, emb, store,
		index.WithLogger(logger),
		index.WithBuildTimeout(cfg.Server.BuildTimeout()))

	model, err := llmopenai.NewClient(llmopenai.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  llmKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}
	policy := retry.Default(cfg.LLM.MaxRetries)
	policy.Retryable = llmopenai.Retryable
	synthesizer := synth.New(model,
		synth.WithMaxConcurrency(cfg.LLM.MaxConcurrency),
		synth.WithRetryPolicy(policy),
		synth.WithMaxTokens(cfg.LLM.MaxTokens),
		synth.WithLogger(logger))

	guard, err := safety.NewGuard(cfg.Safety.Denylist)
	if err != nil {
		return nil, err
	}

	svc := service.NewRAGService(service.Components{
		Index:       manager,
		Embedder:    emb,
		Store:       store,
		Template:    prompt.Default,
		Synthesizer: synthesizer,
		Guard:       guard,
	},
		service.WithTopK(cfg.Retrieval.TopK),
		service.WithTimeout(cfg.Server.RequestTimeout()),
		service.WithLogger(logger))

	return &app{cfg: cfg, logger: logger, manager: manager, service: svc}, nil
}

func newEmbedder(cfg config.EmbedderConfig, apiKey string, logger *slog.Logger) (domain.Embedder, error) {
	var inner embedding.Embedder
	policy := retry.Default(cfg.MaxRetries)
	switch cfg.Type {
	case "tfidf":
		inner = tfidf.NewEmbedder()
	case "openai":
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           cfg.BaseURL,
			APIKey:            apiKey,
			Model:             cfg.Model,
			Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		inner = client
		policy.Retryable = llmopenai.Retryable
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrConfig, cfg.Type)
	}
	return embedding.NewBatched(inner,
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithParallelism(cfg.Parallelism),
		embedding.WithRetryPolicy(policy),
		embedding.WithLogger(logger)), nil
}

func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", domain.ErrConfig, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", domain.ErrConfig, cfg.Format)
	}
}
