package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// DocumentsStats returns the document count and the newest updated_at, which
// moves whenever an ingestion run changes a status. latest is nil for an
// empty table.
func DocumentsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return freshness[domain.Document](ctx, db)
}

// SessionsStats is DocumentsStats for chat sessions.
func SessionsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return freshness[domain.ChatSession](ctx, db)
}

// freshness feeds list ETags. MAX(updated_at) comes back as TEXT from SQLite,
// so the newest row is read through the model instead.
func freshness[M any](ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	q := db.WithContext(ctx).Model(new(M))
	var n int64
	if err := q.Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}
	var newest struct{ UpdatedAt time.Time }
	if err := db.WithContext(ctx).Model(new(M)).
		Select("updated_at").Order("updated_at DESC").Limit(1).
		Scan(&newest).Error; err != nil {
		return 0, nil, err
	}
	return n, &newest.UpdatedAt, nil
}
