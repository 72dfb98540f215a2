// Package services defines the business logic of the retrieval pipeline:
// document ingestion, chat turns, sessions, personas, settings, search and
// administration. This file centralizes service-level error values and the
// Kind taxonomy handlers use to pick an HTTP status.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/go-rag-backend/internal/embedder"
	"github.com/tbourn/go-rag-backend/internal/extract"
	"github.com/tbourn/go-rag-backend/internal/llm"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/search"
)

// Kind classifies a service error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnsupportedInput
	KindExtractionEmpty
	KindUpstreamFailure
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnsupportedInput:
		return "unsupported_input"
	case KindExtractionEmpty:
		return "extraction_empty"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindValidation:
		return "validation_error"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Not found.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrPersonaNotFound  = errors.New("persona not found")
	ErrSettingNotFound  = errors.New("setting not found")
)

// Unsupported input.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type; allowed: txt, pdf, md")
	ErrUnknownProvider     = errors.New("unknown llm provider")
)

// ErrEmptyExtraction is recorded on documents whose text came out blank.
var ErrEmptyExtraction = errors.New("No text content extracted from file")

// ErrUpstream wraps embedding and generation failures.
var ErrUpstream = errors.New("upstream failure")

// Validation.
var (
	ErrEmptyQuery       = errors.New("query is empty")
	ErrInvalidTopK      = errors.New("top_k must be between 1 and 50")
	ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")
	ErrEmptyMessage     = errors.New("message content is empty")
	ErrEmptyName        = errors.New("name is empty")
	ErrEmptyPrompt      = errors.New("system prompt is empty")
	ErrNoFiles          = errors.New("no files uploaded")
	ErrForbiddenQuery   = errors.New("Only SELECT queries are allowed")
	ErrQueryFailed      = errors.New("Query error")
)

// Conflict.
var (
	ErrDuplicatePersona = errors.New("persona name already exists")
	ErrIngestionRunning = errors.New("document is already being processed")
	ErrQueueFull        = errors.New("ingestion queue full")
	ErrQueueClosed      = errors.New("ingestion queue closed")
)

var kindTable = []struct {
	kind Kind
	errs []error
}{
	{KindNotFound, []error{ErrSessionNotFound, ErrDocumentNotFound, ErrPersonaNotFound, ErrSettingNotFound, repo.ErrNotFound}},
	{KindUnsupportedInput, []error{ErrUnsupportedFileType, ErrUnknownProvider, extract.ErrUnsupportedType, llm.ErrUnknownProvider}},
	{KindExtractionEmpty, []error{ErrEmptyExtraction}},
	{KindValidation, []error{
		ErrEmptyQuery, ErrInvalidTopK, ErrInvalidThreshold, ErrEmptyMessage, ErrEmptyName,
		ErrEmptyPrompt, ErrNoFiles, ErrForbiddenQuery, ErrQueryFailed, search.ErrEmptyQuery, embedder.ErrEmptyText,
	}},
	{KindConflict, []error{ErrDuplicatePersona, ErrIngestionRunning, ErrQueueFull, repo.ErrDuplicate}},
	{KindUpstreamFailure, []error{
		ErrUpstream, llm.ErrUpstream, embedder.ErrProviderFailed, embedder.ErrNotInitialized,
		embedder.ErrDimensionMismatch, extract.ErrPDFToolNotFound,
	}},
}

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, row := range kindTable {
		for _, e := range row.errs {
			if errors.Is(err, e) {
				return row.kind
			}
		}
	}
	return KindInternal
}
