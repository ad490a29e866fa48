package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"healthrag/internal/domain"
)

// CorpusConfig locates the reference documents.
type CorpusConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkerConfig configures how documents are split into passages.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string  `yaml:"type"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size"`
	Parallelism       int     `yaml:"parallelism"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LLMConfig configures the language model used to write answers.
type LLMConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	TimeoutSecs    int    `yaml:"timeout_secs"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxTokens      int    `yaml:"max_tokens"`
}

// RetrievalConfig controls how many passages ground each answer.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// SafetyConfig lists regular expressions that must never appear in an answer.
type SafetyConfig struct {
	Denylist []string `yaml:"denylist"`
}

// ServerConfig configures the HTTP and WebSocket surface.
type ServerConfig struct {
	Listen             string `yaml:"listen"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
	BuildTimeoutSecs   int    `yaml:"build_timeout_secs"`
	Warmup             bool   `yaml:"warmup"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Safety    SafetyConfig    `yaml:"safety"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrConfig, path, err)
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/healthrag/config.yaml.
// If neither exists, defaults are returned with an empty path.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	return defaultConfig(), "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks parameters that would otherwise fail later at runtime.
func (c *AppConfig) Validate() error {
	if c.Chunker.ChunkSize <= 0 || c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("%w: chunker: overlap %d must be in [0, %d)", domain.ErrConfig, c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", domain.ErrConfig)
	}
	switch c.Embedder.Type {
	case "openai", "tfidf":
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrConfig, c.Embedder.Type)
	}
	if c.Corpus.Dir == "" {
		return fmt.Errorf("%w: corpus.dir is empty", domain.ErrConfig)
	}
	return nil
}

// RequireCredentials fails fast when a provider key is absent from the
// environment and returns the keys otherwise.
func (c *AppConfig) RequireCredentials() (embedderKey, llmKey string, err error) {
	if c.Embedder.Type == "openai" {
		if embedderKey = os.Getenv(c.Embedder.APIKeyEnv); embedderKey == "" {
			return "", "", fmt.Errorf("%w: %s is not set", domain.ErrConfig, c.Embedder.APIKeyEnv)
		}
	}
	if llmKey = os.Getenv(c.LLM.APIKeyEnv); llmKey == "" {
		return "", "", fmt.Errorf("%w: %s is not set", domain.ErrConfig, c.LLM.APIKeyEnv)
	}
	return embedderKey, llmKey, nil
}

func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}

func (c ServerConfig) BuildTimeout() time.Duration {
	return time.Duration(c.BuildTimeoutSecs) * time.Second
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "healthrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = filepath.Join("public", "docs")
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 800
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 100
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "openai"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 512
	}
	if cfg.Embedder.Parallelism == 0 {
		cfg.Embedder.Parallelism = 4
	}
	if cfg.Embedder.MaxRetries == 0 {
		cfg.Embedder.MaxRetries = 3
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4-turbo"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 45
	}
	if cfg.LLM.MaxConcurrency == 0 {
		cfg.LLM.MaxConcurrency = 5
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 2
	}
	if cfg.Safety.Denylist == nil {
		cfg.Safety.Denylist = defaultDenylist()
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.RequestTimeoutSecs == 0 {
		cfg.Server.RequestTimeoutSecs = 60
	}
	if cfg.Server.BuildTimeoutSecs == 0 {
		cfg.Server.BuildTimeoutSecs = 300
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// defaultDenylist covers common glucose, blood-pressure and pain medication
// names and explicit dose expressions, in English and Spanish.
func defaultDenylist() []string {
	return []string{
		`\bmetformin[ae]?\b`,
		`\binsulin[ae]?\b`,
		`\bglibenclamid[ae]\b`,
		`\bsitagliptin[ae]?\b`,
		`\bempagliflozin[ae]?\b`,
		`\blosart[aá]n\b`,
		`\benalapril\b`,
		`\bamlodipin[ae]?\b`,
		`\batorvastatin[ae]?\b`,
		`\bibuprofeno?\b`,
		`\bparacetamol\b`,
		`\baspirin[ae]?\b`,
		`\b\d+(?:[.,]\d+)?\s*(?:mg|mcg|µg|ml|ui|iu|unidades|units)\b`,
	}
}
