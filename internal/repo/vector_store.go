package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/search"
)

// VectorStore exposes the chunks of completed documents to the ranker.
// Rows are streamed so memory stays bounded by one row at a time.
type VectorStore struct {
	DB *gorm.DB
}

// NewVectorStore wraps db.
func NewVectorStore(db *gorm.DB) *VectorStore { return &VectorStore{DB: db} }

type candidateRow struct {
	ChunkID    string
	DocumentID string
	Filename   string
	ChunkIndex int
	Content    string
	Embedding  domain.Vector
}

// EachCandidate calls fn for every chunk whose document is completed, in
// storage order. A non-nil error from fn stops the scan and is returned.
func (s *VectorStore) EachCandidate(ctx context.Context, fn func(search.Candidate) error) error {
	rows, err := s.DB.WithContext(ctx).
		Table("chunks").
		Select("chunks.id AS chunk_id, chunks.document_id, documents.filename, chunks.chunk_index, chunks.content, chunks.embedding").
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Where("documents.status = ?", domain.StatusCompleted).
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r candidateRow
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Filename, &r.ChunkIndex, &r.Content, &r.Embedding); err != nil {
			return err
		}
		if err := fn(search.Candidate{
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			DocumentName: r.Filename,
			ChunkIndex:   r.ChunkIndex,
			Content:      r.Content,
			Embedding:    r.Embedding,
		}); err != nil {
			return err
		}
	}
	return rows.Err()
}
