package embedder

import (
	"context"
	"errors"
	"sync"
)

// Shared is the process-wide embedder. It is initialised once at startup;
// later Init calls are no-ops and the instance is never reloaded.
type Shared struct {
	mu   sync.RWMutex
	done bool
	svc  *Service
	err  error
}

// Init builds the service with build exactly once and records the outcome.
// It returns the error of the first attempt on every call.
func (s *Shared) Init(build func() (*Service, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.err
	}
	s.svc, s.err = build()
	s.done = true
	return s.err
}

// Get returns the initialised service. Before Init, or after a failed one,
// the error matches ErrNotInitialized; a failed Init's cause is joined in.
func (s *Shared) Get() (*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.done {
		return nil, ErrNotInitialized
	}
	if s.err != nil {
		return nil, errors.Join(ErrNotInitialized, s.err)
	}
	return s.svc, nil
}

// Healthy reports whether a usable service is available.
func (s *Shared) Healthy() bool {
	_, err := s.Get()
	return err == nil
}

func (s *Shared) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	svc, err := s.Get()
	if err != nil {
		return nil, err
	}
	return svc.EmbedOne(ctx, text)
}

func (s *Shared) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := s.Get()
	if err != nil {
		return nil, err
	}
	return svc.EmbedMany(ctx, texts)
}

// Dimension is 0 until a service is available.
func (s *Shared) Dimension() int {
	svc, err := s.Get()
	if err != nil {
		return 0
	}
	return svc.Dimension()
}

// Model names the loaded model, or "" before initialisation.
func (s *Shared) Model() string {
	svc, err := s.Get()
	if err != nil {
		return ""
	}
	return svc.Model()
}

// CacheSize is the number of cached vectors, 0 before initialisation.
func (s *Shared) CacheSize() int {
	svc, err := s.Get()
	if err != nil {
		return 0
	}
	return svc.CacheSize()
}
