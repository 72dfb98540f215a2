// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for ChatMessage.
//
// Conversation order is creation order. Rows inserted within the same clock
// tick are disambiguated by SQLite's rowid, which is monotonic for inserts.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

const conversationOrder = "created_at ASC, rowid ASC"

// CreateMessage appends a message to a session. chunkIDs is the grounding
// provenance of assistant replies; nil stores NULL.
func CreateMessage(ctx context.Context, db *gorm.DB, sessionID, role, content string, chunkIDs []string) (*domain.ChatMessage, error) {
	m := &domain.ChatMessage{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Role:          role,
		Content:       content,
		ContextChunks: domain.EncodeChunkIDs(chunkIDs),
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns a session's messages in conversation order. A positive
// limit caps the result.
func ListMessages(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	q := db.WithContext(ctx).Where("session_id = ?", sessionID).Order(conversationOrder)
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// RecentMessages returns the last n user/assistant messages of a session,
// oldest first.
func RecentMessages(ctx context.Context, db *gorm.DB, sessionID string, n int) ([]domain.ChatMessage, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ? AND role IN ?", sessionID, []string{domain.RoleUser, domain.RoleAssistant}).
		Order("created_at DESC, rowid DESC").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages returns how many messages a session holds.
func CountMessages(ctx context.Context, db *gorm.DB, sessionID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ?", sessionID).
		Count(&total).Error
	return total, err
}

// CountMessagesByRole counts the session's messages with the given role.
func CountMessagesByRole(ctx context.Context, db *gorm.DB, sessionID, role string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("session_id = ? AND role = ?", sessionID, role).
		Count(&total).Error
	return total, err
}
