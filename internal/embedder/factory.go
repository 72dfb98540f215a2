package embedder

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-rag-backend/internal/config"
)

// New creates a Service for the configured provider.
func New(cfg config.EmbeddingConfig, observe Observer) (*Service, error) {
	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case config.EmbeddingLocal, "":
		p = NewLocalProvider(cfg.Dimension)
	case config.EmbeddingOllama:
		p = NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Timeout)
	case config.EmbeddingOpenAI:
		p = NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	return NewService(p, Options{
		Dimension: cfg.Dimension,
		CacheSize: cfg.CacheSize,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Observer:  observe,
	})
}
