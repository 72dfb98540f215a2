package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// CreateSession inserts a new chat session. customized marks a caller-chosen
// title that must never be replaced automatically.
func CreateSession(ctx context.Context, db *gorm.DB, title string, customized bool, personaID *string, provider string) (*domain.ChatSession, error) {
	now := time.Now().UTC()
	s := &domain.ChatSession{
		ID:              uuid.NewString(),
		Title:           title,
		TitleCustomized: customized,
		PersonaID:       personaID,
		LLMProvider:     provider,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessionsPage returns a page of sessions, newest first.
func ListSessionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ChatSession, error) {
	var out []domain.ChatSession
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountSessions returns the total number of sessions.
func CountSessions(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.ChatSession{}).Count(&total).Error
	return total, err
}

// GetSession fetches a session by id or returns ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.ChatSession, error) {
	var s domain.ChatSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionTitle sets the title of a session. customized records whether
// the title came from a caller rather than from auto-titling.
func UpdateSessionTitle(ctx context.Context, db *gorm.DB, id, title string, customized bool) error {
	res := db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"title":            title,
			"title_customized": customized,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchSession bumps a session's updated_at.
func TouchSession(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.ChatSession{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteSession removes a session; its messages cascade.
func DeleteSession(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.ChatSession{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
