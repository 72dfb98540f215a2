// Package services – HealthService
//
// HealthService checks the collaborators a chat turn depends on and reports
// each one as healthy or unhealthy. Checks run concurrently and are bounded
// by Timeout.
package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"

	"github.com/tbourn/go-rag-backend/internal/llm"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// Health states.
const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// ComponentEmbedding and ComponentDatabase name the non-generator checks.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding_model"
)

// EmbeddingHealth reports whether the embedding model loaded.
type EmbeddingHealth interface {
	Healthy() bool
}

// GeneratorSet enumerates configured generator backends.
type GeneratorSet interface {
	Names() []string
	Get(name string) (llm.Generator, error)
}

// HealthService aggregates component health.
type HealthService struct {
	DB         *gorm.DB
	Generators GeneratorSet
	Embedder   EmbeddingHealth
	Timeout    time.Duration
}

// Check returns a component → state map. Every configured generator is keyed
// by its provider id.
func (s *HealthService) Check(ctx context.Context) map[string]string {
	tr := otel.Tracer("services/HealthService")
	ctx, span := tr.Start(ctx, "Check")
	defer span.End()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		out = make(map[string]string)
	)
	set := func(name string, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		out[name] = state(ok)
	}

	var g errgroup.Group
	g.Go(func() error {
		set(ComponentDatabase, s.DB != nil && repo.Ping(ctx, s.DB) == nil)
		return nil
	})
	if s.Generators != nil {
		for _, name := range s.Generators.Names() {
			gen, err := s.Generators.Get(name)
			if err != nil {
				set(name, false)
				continue
			}
			g.Go(func() error {
				set(name, gen.HealthCheck(ctx))
				return nil
			})
		}
	}
	set(ComponentEmbedding, s.Embedder != nil && s.Embedder.Healthy())
	_ = g.Wait()
	return out
}

// AllHealthy reports whether every component in states is healthy.
func AllHealthy(states map[string]string) bool {
	for _, v := range states {
		if v != Healthy {
			return false
		}
	}
	return true
}

func state(ok bool) string {
	if ok {
		return Healthy
	}
	return Unhealthy
}
