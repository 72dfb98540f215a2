// Package chunker splits raw document text into bounded, overlapping chunks.
//
// Sizes are counted in whitespace-delimited words. Text is split on the
// coarsest boundary first (paragraph, then line, then sentence, then word);
// a closed chunk that is still more than 1.5x the target size is re-split
// with the finer boundaries that remain. Consecutive chunks share up to
// Overlap words taken from whole trailing parts of the previous chunk.
//
// The package is pure and has no dependencies; a Chunker is immutable and
// safe for concurrent use.
package chunker

import "strings"

// Defaults used by New when no option overrides them.
const (
	DefaultSize    = 512
	DefaultOverlap = 50
)

// oversizeFactor bounds how far a closed chunk may exceed the target size
// before it is re-split with a finer separator.
const oversizeFactor = 1.5

// DefaultSeparators is the boundary priority: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Option configures a Chunker.
type Option func(*Chunker)

// Chunker holds the chunking parameters.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// WithSize sets the target chunk size in words.
func WithSize(n int) Option {
	return func(c *Chunker) { c.size = n }
}

// WithOverlap sets the maximum number of words carried into the next chunk.
func WithOverlap(n int) Option {
	return func(c *Chunker) { c.overlap = n }
}

// WithSeparators replaces the separator priority list. Empty lists are ignored.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = append([]string(nil), seps...)
		}
	}
}

// New returns a Chunker. Size and overlap are not validated; non-positive
// sizes simply fragment maximally.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:       DefaultSize,
		overlap:    DefaultOverlap,
		separators: DefaultSeparators,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Split returns the ordered chunks of text. Empty or whitespace-only text
// yields an empty slice.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}
	out := make([]string, 0, 8)
	return c.split(out, text, c.separators)
}

// Split chunks text with the default separators.
func Split(text string, size, overlap int) []string {
	return New(WithSize(size), WithOverlap(overlap)).Split(text)
}

// WordCount counts whitespace-delimited words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

func (c *Chunker) split(out []string, text string, seps []string) []string {
	sep, rest := seps[0], seps[1:]

	var (
		buf  []string
		size int
	)
	for _, part := range strings.Split(text, sep) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n := WordCount(part)

		if size+n > c.size && len(buf) > 0 {
			out = c.emit(out, buf, sep, rest)

			carry, carried := c.carry(buf)
			buf = append(carry, part)
			size = carried + n
			continue
		}
		buf = append(buf, part)
		size += n
	}
	if len(buf) > 0 {
		out = c.emit(out, buf, sep, rest)
	}
	return out
}

// emit closes buf into a chunk, re-splitting it with the remaining
// separators when it is oversized.
func (c *Chunker) emit(out, buf []string, sep string, rest []string) []string {
	chunk := strings.TrimSpace(strings.Join(buf, sep))
	if chunk == "" {
		return out
	}
	if len(rest) > 0 && float64(WordCount(chunk)) > float64(c.size)*oversizeFactor {
		return c.split(out, chunk, rest)
	}
	return append(out, chunk)
}

// carry returns the longest suffix of whole parts of buf whose word count
// stays within the overlap bound, together with that word count.
func (c *Chunker) carry(buf []string) ([]string, int) {
	start, words := len(buf), 0
	for i := len(buf) - 1; i >= 0; i-- {
		n := WordCount(buf[i])
		if words+n > c.overlap {
			break
		}
		words += n
		start = i
	}
	carry := make([]string, len(buf)-start, len(buf)-start+1)
	copy(carry, buf[start:])
	return carry, words
}
