// Package extract turns stored uploads into plain text for chunking.
// Supported types are txt, md and pdf; everything else is rejected with
// ErrUnsupportedType before the file is opened.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Supported file types (lowercase extension without the dot).
const (
	TypeText     = "txt"
	TypeMarkdown = "md"
	TypePDF      = "pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")
)

// Supported reports whether fileType can be extracted.
func Supported(fileType string) bool {
	switch strings.ToLower(fileType) {
	case TypeText, TypeMarkdown, TypePDF:
		return true
	}
	return false
}

// Extractor reads files of the supported types.
type Extractor struct {
	runner CommandRunner
}

// New returns an Extractor that shells out to pdftotext for PDFs.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner is New with a custom command runner, mainly for tests.
func NewWithRunner(r CommandRunner) *Extractor {
	return &Extractor{runner: r}
}

// Extract returns the text content of path interpreted as fileType.
func (e *Extractor) Extract(ctx context.Context, path, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case TypeText:
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return DecodeText(raw), nil
	case TypeMarkdown:
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return FlattenMarkdown(DecodeText(raw)), nil
	case TypePDF:
		return e.pdf(ctx, path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}
