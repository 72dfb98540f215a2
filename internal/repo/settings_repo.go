package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// ListSettings returns all settings ordered by category, then key.
func ListSettings(ctx context.Context, db *gorm.DB) ([]domain.SystemSetting, error) {
	var out []domain.SystemSetting
	err := db.WithContext(ctx).Order("category ASC, key ASC").Find(&out).Error
	return out, err
}

// GetSetting fetches a setting by key or returns ErrNotFound.
func GetSetting(ctx context.Context, db *gorm.DB, key string) (*domain.SystemSetting, error) {
	var s domain.SystemSetting
	if err := db.WithContext(ctx).Where("key = ?", key).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettingValue replaces the value of an existing setting.
func UpdateSettingValue(ctx context.Context, db *gorm.DB, key, value string) error {
	res := db.WithContext(ctx).
		Model(&domain.SystemSetting{}).
		Where("key = ?", key).
		Updates(map[string]any{"value": value, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertSettingIfMissing creates s unless its key already exists. It reports
// whether a row was written.
func InsertSettingIfMissing(ctx context.Context, db *gorm.DB, s *domain.SystemSetting) (bool, error) {
	if s.Category == "" {
		s.Category = "general"
	}
	s.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(s)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
