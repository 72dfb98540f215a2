package embedder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Observer receives the duration of every provider round-trip. op is "one"
// or "many".
type Observer func(op string, d time.Duration)

// Options tunes a Service.
type Options struct {
	Dimension int
	CacheSize int // 0 disables caching
	BatchSize int // texts per provider call
	Workers   int // concurrent provider calls for one EmbedMany
	Observer  Observer
}

// Service adapts a Provider to the Embedder contract.
type Service struct {
	provider  Provider
	dim       int
	cache     *Cache
	batchSize int
	workers   int
	observe   Observer
}

var _ Embedder = (*Service)(nil)

// NewService wraps p. Dimension must be positive.
func NewService(p Provider, opts Options) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrUnsupportedProvider)
	}
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("embedder: dimension must be positive, got %d", opts.Dimension)
	}
	s := &Service{
		provider:  p,
		dim:       opts.Dimension,
		batchSize: opts.BatchSize,
		workers:   opts.Workers,
		observe:   opts.Observer,
	}
	if s.batchSize <= 0 {
		s.batchSize = 64
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if opts.CacheSize > 0 {
		s.cache = NewCache(opts.CacheSize)
	}
	return s, nil
}

func (s *Service) Dimension() int   { return s.dim }
func (s *Service) Provider() string { return s.provider.Name() }
func (s *Service) Model() string    { return s.provider.Model() }

// EmbedOne embeds a single non-blank text.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	key := s.key(text)
	if v, ok := s.cached(key); ok {
		return v, nil
	}

	start := time.Now()
	vecs, err := s.provider.Embed(ctx, []string{text})
	s.record("one", start)
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for 1 input", ErrProviderFailed, len(vecs))
	}
	v, err := s.finish(vecs[0])
	if err != nil {
		return nil, err
	}
	s.store(key, v)
	return v, nil
}

// EmbedMany embeds texts in order. Cache misses are sent to the provider in
// sub-batches of BatchSize, at most Workers at a time.
func (s *Service) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyText, i)
		}
		if v, ok := s.cached(s.key(t)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for lo := 0; lo < len(missIdx); lo += s.batchSize {
		hi := min(lo+s.batchSize, len(missIdx))
		idx := missIdx[lo:hi]
		g.Go(func() error {
			batch := make([]string, len(idx))
			for j, i := range idx {
				batch[j] = texts[i]
			}
			vecs, err := s.provider.Embed(gctx, batch)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(vecs), len(batch))
			}
			for j, i := range idx {
				v, err := s.finish(vecs[j])
				if err != nil {
					return err
				}
				out[i] = v
			}
			return nil
		})
	}
	err := g.Wait()
	s.record("many", start)
	if err != nil {
		return nil, err
	}
	for _, i := range missIdx {
		s.store(s.key(texts[i]), out[i])
	}
	return out, nil
}

// CacheSize reports the number of cached vectors, 0 when caching is off.
func (s *Service) CacheSize() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Size()
}

func (s *Service) finish(v []float32) ([]float32, error) {
	if err := checkDimension(v, s.dim); err != nil {
		return nil, err
	}
	return NormalizeVector(v), nil
}

func (s *Service) key(text string) string {
	return ComputeHash(s.provider.Model() + "\x00" + text)
}

func (s *Service) cached(key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) store(key string, v []float32) {
	if s.cache != nil {
		s.cache.Set(key, v)
	}
}

func (s *Service) record(op string, start time.Time) {
	if s.observe != nil {
		s.observe(op, time.Since(start))
	}
}
