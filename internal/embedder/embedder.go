// Package embedder turns text into fixed-dimension, L2-normalised vectors.
//
// A Service wraps one Provider (local feature hashing, Ollama or an
// OpenAI-compatible server) and adds what every provider needs: an LRU cache
// keyed by content hash, dimension checks, normalisation, and bounded
// parallel sub-batches for large inputs. Shared holds the process-wide
// instance, initialised once at startup and never reloaded.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// Common errors
var (
	ErrEmptyText           = errors.New("text cannot be empty")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
	ErrProviderFailed      = errors.New("embedding provider failed")
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrNotInitialized      = errors.New("embedder not initialized")
)

// Embedder is the contract consumed by ingestion and search.
type Embedder interface {
	// EmbedOne returns the normalised embedding of text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedMany returns one embedding per input, in input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed length of every vector.
	Dimension() int
}

// Provider computes raw embeddings for a batch of texts. Implementations need
// not normalise or cache; Service does both.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Model() string
}

// ComputeHash computes the SHA-256 hex digest of text for cache keys.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// NormalizeVector scales v to unit length in place and returns it. Zero
// vectors are returned unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}

func checkDimension(v []float32, want int) error {
	if len(v) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), want)
	}
	return nil
}
