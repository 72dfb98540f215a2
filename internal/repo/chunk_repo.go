package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

const chunkInsertBatch = 100

// ReplaceChunks deletes every chunk of documentID and inserts chunks in its
// place. Callers run it inside a transaction so the swap is all-or-nothing.
// IDs, DocumentID and CreatedAt are assigned here; all embeddings must share
// one dimension.
func ReplaceChunks(ctx context.Context, db *gorm.DB, documentID string, chunks []domain.Chunk) error {
	dim := -1
	now := time.Now().UTC()
	for i := range chunks {
		if dim < 0 {
			dim = chunks[i].Embedding.Dim()
		}
		if chunks[i].Embedding.Dim() != dim || dim == 0 {
			return fmt.Errorf("chunk %d: embedding dimension %d, want %d", i, chunks[i].Embedding.Dim(), dim)
		}
		chunks[i].ID = uuid.NewString()
		chunks[i].DocumentID = documentID
		chunks[i].CreatedAt = now
	}

	tx := db.WithContext(ctx)
	if err := tx.Where("document_id = ?", documentID).Delete(&domain.Chunk{}).Error; err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return tx.CreateInBatches(chunks, chunkInsertBatch).Error
}

// ListChunks returns a document's chunks ordered by chunk_index.
func ListChunks(ctx context.Context, db *gorm.DB, documentID string) ([]domain.Chunk, error) {
	var out []domain.Chunk
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&out).Error
	return out, err
}

// ListChunkIDs returns the ids of a document's chunks.
func ListChunkIDs(ctx context.Context, db *gorm.DB, documentID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Chunk{}).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Pluck("id", &ids).Error
	return ids, err
}
