// Package services – IngestService
//
// IngestService drives one document through extraction, chunking, embedding
// and chunk replacement:
//
//	Pending -> Processing -> Completed | Failed
//
// Processing is persisted before any work starts. Failures of any step are
// recorded on the document and never partially commit new chunks: the old
// chunk set is swapped for the new one inside a single transaction together
// with the Completed transition.
package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/chunker"
	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// Extractor is the text-extraction boundary.
type Extractor interface {
	Extract(ctx context.Context, path, fileType string) (string, error)
}

// Splitter turns text into chunk strings.
type Splitter interface {
	Split(text string) []string
}

// BatchEmbedder embeds many texts at once.
type BatchEmbedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestService processes documents.
type IngestService struct {
	DB        *gorm.DB
	Extractor Extractor
	Splitter  Splitter
	Embedder  BatchEmbedder
	UploadDir string
	Metrics   PipelineMetrics
}

// UploadPath is where the upload of doc is stored.
func UploadPath(uploadDir string, doc *domain.Document) string {
	return filepath.Join(uploadDir, doc.ID, doc.Filename)
}

// Process runs the pipeline for documentID. The outcome is recorded on the
// document; the returned error is informational and only used for logging,
// except ErrDocumentNotFound which means nothing was recorded.
func (s *IngestService) Process(ctx context.Context, documentID string) error {
	tr := otel.Tracer("services/IngestService")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(attribute.String("document.id", documentID)),
	)
	defer span.End()

	start := time.Now()
	metrics := metricsOrNoop(s.Metrics)

	doc, err := repo.GetDocument(ctx, s.DB, documentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}

	if err := repo.SetDocumentStatus(ctx, s.DB, doc.ID, domain.StatusProcessing, nil); err != nil {
		return s.fail(ctx, span, doc.ID, fmt.Errorf("mark processing: %w", err))
	}

	count, err := s.run(ctx, doc)
	if err != nil {
		return s.fail(ctx, span, doc.ID, err)
	}

	metrics.IngestionFinished(string(domain.StatusCompleted), count)
	span.SetAttributes(attribute.Int("chunks", count))
	log.Info().
		Str("document_id", doc.ID).
		Int("chunks", count).
		Dur("latency", time.Since(start)).
		Msg("document processed")
	return nil
}

func (s *IngestService) run(ctx context.Context, doc *domain.Document) (int, error) {
	text, err := s.Extractor.Extract(ctx, UploadPath(s.UploadDir, doc), doc.FileType)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyExtraction
	}

	parts := s.Splitter.Split(text)
	if len(parts) == 0 {
		return 0, ErrEmptyExtraction
	}

	vecs, err := s.Embedder.EmbedMany(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("%w: embed: %w", ErrUpstream, err)
	}
	if len(vecs) != len(parts) {
		return 0, fmt.Errorf("%w: embed: got %d vectors for %d chunks", ErrUpstream, len(vecs), len(parts))
	}

	chunks := make([]domain.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = domain.Chunk{
			ChunkIndex: i,
			Content:    p,
			TokenCount: chunker.WordCount(p),
			Embedding:  domain.Vector(vecs[i]),
		}
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.ReplaceChunks(ctx, tx, doc.ID, chunks); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
		return repo.CompleteDocument(ctx, tx, doc.ID, len(chunks))
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// fail records err on the document. The write uses a context detached from
// cancellation so a shutdown still leaves the document in a terminal state.
func (s *IngestService) fail(ctx context.Context, span trace.Span, documentID string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	metricsOrNoop(s.Metrics).IngestionFinished(string(domain.StatusFailed), 0)

	msg := err.Error()
	if werr := repo.SetDocumentStatus(context.WithoutCancel(ctx), s.DB, documentID, domain.StatusFailed, &msg); werr != nil {
		log.Error().Err(werr).Str("document_id", documentID).Msg("record ingestion failure")
	}
	log.Warn().Err(err).Str("document_id", documentID).Msg("document processing failed")
	return err
}
