// Package services – DocumentService
//
// DocumentService owns the upload side of the pipeline: it validates file
// types, stores uploads under UploadDir/{document_id}/{filename}, creates
// Pending documents and hands their ids to the ingestion queue. It also
// lists, fetches, deletes and reprocesses documents.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/extract"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// Paging bounds of list operations.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ScopeDocumentUpload namespaces idempotency keys of uploads.
const ScopeDocumentUpload = "documents.upload"

// Queue accepts document ids for background ingestion.
type Queue interface {
	Reserve(documentID string) error
	Dispatch(documentID string) error
	Release(documentID string)
}

// Upload is one file of an upload request.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// DocumentService manages documents.
type DocumentService struct {
	DB             *gorm.DB
	Queue          Queue
	UploadDir      string
	IdempotencyTTL time.Duration
}

// FileType returns the lowercase extension of name without the dot.
func FileType(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

// Upload validates every file first, then stores and queues each one. With a
// non-empty idemKey, a replay within the TTL returns the documents created by
// the original request and replayed=true.
func (s *DocumentService) Upload(ctx context.Context, files []Upload, idemKey string) (docs []domain.Document, replayed bool, err error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(attribute.Int("files", len(files))),
	)
	defer span.End()

	if idemKey != "" {
		if prev, ok := s.replay(ctx, idemKey); ok {
			return prev, true, nil
		}
	}

	if len(files) == 0 {
		return nil, false, ErrNoFiles
	}
	for _, f := range files {
		if !extract.Supported(FileType(f.Filename)) {
			return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedFileType, f.Filename)
		}
	}

	docs = make([]domain.Document, 0, len(files))
	for _, f := range files {
		d, err := s.store(ctx, f)
		if err != nil {
			return nil, false, err
		}
		docs = append(docs, *d)
	}
	for i := range docs {
		s.enqueue(ctx, &docs[i])
	}

	if idemKey != "" {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		if _, err := repo.CreateIdempotency(ctx, s.DB, ScopeDocumentUpload, idemKey, ids, http.StatusCreated, s.ttl()); err != nil {
			log.Warn().Err(err).Str("idempotency_key", idemKey).Msg("store idempotency record")
		}
	}
	return docs, false, nil
}

func (s *DocumentService) replay(ctx context.Context, key string) ([]domain.Document, bool) {
	rec, err := repo.GetIdempotency(ctx, s.DB, ScopeDocumentUpload, key, time.Now().UTC())
	if err != nil {
		return nil, false
	}
	ids, err := rec.IDs()
	if err != nil {
		return nil, false
	}
	docs, err := repo.GetDocumentsByIDs(ctx, s.DB, ids)
	if err != nil {
		return nil, false
	}
	return docs, true
}

func (s *DocumentService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// store writes the file to disk and creates its Pending document.
func (s *DocumentService) store(ctx context.Context, f Upload) (*domain.Document, error) {
	name := filepath.Base(filepath.Clean("/" + f.Filename))
	d := &domain.Document{
		ID:       uuid.NewString(),
		Filename: name,
		FileType: FileType(name),
		Status:   domain.StatusPending,
	}

	dir := filepath.Join(s.UploadDir, d.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	size, err := copyUpload(f, filepath.Join(dir, name))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	d.FileSize = size

	if err := repo.CreateDocument(ctx, s.DB, d); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return d, nil
}

func copyUpload(f Upload, dst string) (int64, error) {
	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

// enqueue hands a Pending document to the queue. A full or closed queue
// fails the document instead of blocking the caller.
func (s *DocumentService) enqueue(ctx context.Context, d *domain.Document) {
	err := s.Queue.Reserve(d.ID)
	if err == nil {
		err = s.Queue.Dispatch(d.ID)
	}
	if err == nil {
		return
	}
	s.markQueueFailure(ctx, d, err)
}

func (s *DocumentService) markQueueFailure(ctx context.Context, d *domain.Document, err error) {
	msg := err.Error()
	if werr := repo.SetDocumentStatus(ctx, s.DB, d.ID, domain.StatusFailed, &msg); werr != nil {
		log.Error().Err(werr).Str("document_id", d.ID).Msg("record queue failure")
		return
	}
	d.Status = domain.StatusFailed
	d.ErrorMessage = &msg
}

// ListPage returns documents newest first with the total count.
func (s *DocumentService) ListPage(ctx context.Context, offset, limit int) ([]domain.Document, int64, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(attribute.Int("offset", offset), attribute.Int("limit", limit)),
	)
	defer span.End()

	offset, limit = window(offset, limit)
	total, err := repo.CountDocuments(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Document{}, 0, nil
	}
	items, err := repo.ListDocumentsPage(ctx, s.DB, offset, limit)
	return items, total, err
}

// Stats returns the document count and the latest update time, for ETags.
func (s *DocumentService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.DocumentsStats(ctx, s.DB)
}

// Get returns a document and its chunks in chunk_index order.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, []domain.Chunk, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	d, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		return nil, nil, notFound(err, ErrDocumentNotFound)
	}
	chunks, err := repo.ListChunks(ctx, s.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return d, chunks, nil
}

// Delete removes the document row (chunks cascade) and its upload directory.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	if err := repo.DeleteDocument(ctx, s.DB, id); err != nil {
		return notFound(err, ErrDocumentNotFound)
	}
	if err := os.RemoveAll(filepath.Join(s.UploadDir, filepath.Base(id))); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("remove upload dir")
	}
	return nil
}

// Reprocess resets a document to Pending and queues it again. A document
// that is already queued or running is rejected with ErrIngestionRunning.
func (s *DocumentService) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Reprocess", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	d, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrDocumentNotFound)
	}
	if err := s.Queue.Reserve(id); err != nil {
		return nil, err
	}
	if err := repo.SetDocumentStatus(ctx, s.DB, id, domain.StatusPending, nil); err != nil {
		s.Queue.Release(id)
		return nil, err
	}
	d.Status = domain.StatusPending
	d.ErrorMessage = nil

	if err := s.Queue.Dispatch(id); err != nil {
		s.markQueueFailure(ctx, d, err)
	}
	return d, nil
}

// window clamps list paging to offset >= 0 and limit in [1, MaxPageSize],
// with DefaultPageSize for unset limits.
func window(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return offset, limit
}

// notFound maps repo.ErrNotFound to sentinel and passes other errors through.
func notFound(err, sentinel error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return sentinel
	}
	return err
}
