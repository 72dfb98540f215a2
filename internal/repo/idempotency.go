package repo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// GetIdempotency looks up a live record for (scope, key). Blank keys and
// expired records report ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	rec := new(domain.Idempotency)
	err := db.WithContext(ctx).
		Where(map[string]any{"scope": scope, "key": key}).
		Where("expires_at > ?", now).
		Take(rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return rec, nil
}

// CreateIdempotency remembers which resources a keyed request produced. A
// second record for the same (scope, key) fails with ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, scope, key string, resourceIDs []string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	if resourceIDs == nil {
		resourceIDs = []string{}
	}
	raw, err := json.Marshal(resourceIDs)
	if err != nil {
		return nil, err
	}
	created := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:          uuid.NewString(),
		Scope:       scope,
		Key:         key,
		ResourceIDs: raw,
		Status:      status,
		CreatedAt:   created,
		ExpiresAt:   created.Add(ttl),
	}
	err = db.WithContext(ctx).Create(rec).Error
	if isDuplicate(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredIdempotency drops records whose expiry is at or before now and
// reports how many went. A purged key behaves as never used.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Delete(&domain.Idempotency{}, "expires_at <= ?", now)
	return res.RowsAffected, res.Error
}
