// Package services – SearchService
//
// SearchService validates search parameters and delegates ranking to a
// Retriever.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/search"
)

// SearchService answers ad-hoc similarity queries.
type SearchService struct {
	Retriever        Retriever
	DefaultTopK      int
	DefaultThreshold float64
}

// Search ranks stored chunks against query. A nil topK or threshold takes
// the configured default.
func (s *SearchService) Search(ctx context.Context, query string, topK *int, threshold *float64) ([]search.Result, error) {
	tr := otel.Tracer("services/SearchService")
	ctx, span := tr.Start(ctx, "Search")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	k := s.DefaultTopK
	if topK != nil {
		k = *topK
	}
	if k < search.MinTopK || k > search.MaxTopK {
		return nil, ErrInvalidTopK
	}

	floor := s.DefaultThreshold
	if threshold != nil {
		floor = *threshold
	}
	if floor < 0 || floor > 1 {
		return nil, ErrInvalidThreshold
	}

	span.SetAttributes(attribute.Int("search.top_k", k), attribute.Float64("search.threshold", floor))

	res, err := s.Retriever.Search(ctx, query, k, floor)
	if err != nil {
		span.AddEvent("search failed", trace.WithAttributes(attribute.String("error", err.Error())))
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return res, nil
}
