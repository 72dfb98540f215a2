// Package search ranks stored chunk embeddings against a query embedding.
//
// Scoring is cosine similarity. Ranking filters candidates below a similarity
// floor, orders the rest by descending score (stable for ties, so the store's
// natural order breaks them) and truncates to top-k. Reported scores are
// rounded to four decimals.
//
// The package does no logging and holds no state beyond its collaborators;
// a Ranker is safe for concurrent use when its Embedder and Store are.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Bounds accepted by the HTTP layer for caller-supplied parameters.
const (
	MinTopK      = 1
	MaxTopK      = 50
	MinThreshold = 0.0
	MaxThreshold = 1.0
)

// ErrEmptyQuery is returned when the query text is blank.
var ErrEmptyQuery = errors.New("search: empty query")

// Candidate is a stored chunk eligible for ranking.
type Candidate struct {
	ChunkID      string
	DocumentID   string
	DocumentName string
	ChunkIndex   int
	Content      string
	Embedding    []float32
}

// Result is a ranked chunk with its similarity score.
type Result struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"filename"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Store streams the chunks of completed documents.
type Store interface {
	EachCandidate(ctx context.Context, fn func(Candidate) error) error
}

// Embedder turns the query text into a vector.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Ranker embeds a query and ranks the store's candidates against it.
type Ranker struct {
	Embedder Embedder
	Store    Store
}

// NewRanker constructs a Ranker.
func NewRanker(e Embedder, s Store) *Ranker {
	return &Ranker{Embedder: e, Store: s}
}

// Search returns at most topK chunks whose similarity to query is >= floor,
// best first. Parameter bounds are the caller's responsibility.
func (r *Ranker) Search(ctx context.Context, query string, topK int, floor float64) ([]Result, error) {
	tr := otel.Tracer("search/ranker")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int("search.top_k", topK),
			attribute.Float64("search.floor", floor),
		))
	defer span.End()

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	qv, err := r.Embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	acc := newAccumulator(qv, floor)
	if err := r.Store.EachCandidate(ctx, func(c Candidate) error {
		acc.add(c)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	out := acc.top(topK)
	span.SetAttributes(attribute.Int("search.results", len(out)))
	return out, nil
}

type accumulator struct {
	query []float32
	floor float64
	hits  []Result
}

func newAccumulator(query []float32, floor float64) *accumulator {
	return &accumulator{query: query, floor: floor}
}

func (a *accumulator) add(c Candidate) {
	// Rows written under a different dimension cannot be compared.
	if len(c.Embedding) != len(a.query) || len(a.query) == 0 {
		return
	}
	// Filter on the reported precision so no result shows a score below the floor.
	s := round4(Cosine(a.query, c.Embedding))
	if s < a.floor {
		return
	}
	a.hits = append(a.hits, Result{
		ChunkID:      c.ChunkID,
		DocumentID:   c.DocumentID,
		DocumentName: c.DocumentName,
		ChunkIndex:   c.ChunkIndex,
		Content:      c.Content,
		Score:        s,
	})
}

func (a *accumulator) top(k int) []Result {
	sort.SliceStable(a.hits, func(i, j int) bool {
		return a.hits[i].Score > a.hits[j].Score
	})
	if k >= 0 && len(a.hits) > k {
		a.hits = a.hits[:k]
	}
	out := make([]Result, len(a.hits))
	copy(out, a.hits)
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when either has zero
// norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
