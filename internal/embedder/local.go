package embedder

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// LocalModel names the built-in hashing embedder.
const LocalModel = "feature-hash-v1"

const bigramWeight = 0.5

var (
	wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)
	folder = cases.Fold()
)

// LocalProvider is a deterministic feature-hashing embedder. Each token and
// adjacent-token bigram is hashed into one of dim buckets with a sign bit, so
// texts sharing vocabulary land close together under cosine similarity. It
// needs no network and no model download.
type LocalProvider struct {
	dim int
}

// NewLocalProvider returns a hashing provider producing dim-length vectors.
func NewLocalProvider(dim int) *LocalProvider {
	if dim <= 0 {
		dim = 384
	}
	return &LocalProvider{dim: dim}
}

func (l *LocalProvider) Name() string  { return "local" }
func (l *LocalProvider) Model() string { return LocalModel }

// Embed hashes every text. It never fails except on cancellation.
func (l *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = l.vector(t)
	}
	return out, nil
}

func (l *LocalProvider) vector(text string) []float32 {
	v := make([]float32, l.dim)
	toks := tokens(text)
	if len(toks) == 0 {
		// punctuation-only input still gets a stable, non-zero vector
		l.add(v, strings.TrimSpace(text), 1)
		return NormalizeVector(v)
	}
	for i, tok := range toks {
		l.add(v, tok, 1)
		if i > 0 {
			l.add(v, toks[i-1]+" "+tok, bigramWeight)
		}
	}
	return NormalizeVector(v)
}

func (l *LocalProvider) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(l.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

func tokens(s string) []string {
	s = folder.String(norm.NFKC.String(s))
	return wordRE.FindAllString(s, -1)
}
