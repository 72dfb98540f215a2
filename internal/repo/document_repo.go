// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a document is not found, functions return ErrNotFound.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// CreateDocument inserts d. A missing ID is generated; Status defaults to
// pending.
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	return db.WithContext(ctx).Create(d).Error
}

// GetDocument fetches a document by id or returns ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// GetDocumentsByIDs returns the documents with the given ids in the order the
// ids were supplied. Missing ids are skipped.
func GetDocumentsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []domain.Document
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Document, len(rows))
	for _, d := range rows {
		byID[d.ID] = d
	}
	out := make([]domain.Document, 0, len(rows))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// ListDocumentsPage returns documents newest first.
func ListDocumentsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountDocuments returns the total number of documents.
func CountDocuments(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Document{}).Count(&total).Error
	return total, err
}

// DeleteDocument removes a document; its chunks cascade.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDocumentStatus moves a document to status and records errMsg (nil
// clears the previous error).
func SetDocumentStatus(ctx context.Context, db *gorm.DB, id string, status domain.DocumentStatus, errMsg *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteDocument marks a document completed with chunkCount chunks and
// clears any previous error.
func CompleteDocument(ctx context.Context, db *gorm.DB, id string, chunkCount int) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.StatusCompleted,
			"chunk_count":   chunkCount,
			"error_message": nil,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
