// Package services – SettingsService
//
// SettingsService exposes runtime key/value settings.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// SettingsService lists and updates system settings.
type SettingsService struct {
	DB *gorm.DB
}

// List returns settings ordered by category, then key.
func (s *SettingsService) List(ctx context.Context) ([]domain.SystemSetting, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListSettings(ctx, s.DB)
}

// Update replaces the value of an existing key and returns the stored row.
func (s *SettingsService) Update(ctx context.Context, key, value string) (*domain.SystemSetting, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("setting.key", key)))
	defer span.End()

	if err := repo.UpdateSettingValue(ctx, s.DB, key, value); err != nil {
		return nil, notFound(err, ErrSettingNotFound)
	}
	st, err := repo.GetSetting(ctx, s.DB, key)
	if err != nil {
		return nil, notFound(err, ErrSettingNotFound)
	}
	return st, nil
}
