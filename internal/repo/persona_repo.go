package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// CreatePersona inserts p, assigning an id when missing. A name collision
// returns ErrDuplicate.
func CreatePersona(ctx context.Context, db *gorm.DB, p *domain.Persona) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// SavePersona writes every column of p. A name collision returns ErrDuplicate.
func SavePersona(ctx context.Context, db *gorm.DB, p *domain.Persona) error {
	p.UpdatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Save(p).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ListPersonas returns all personas ordered by name.
func ListPersonas(ctx context.Context, db *gorm.DB) ([]domain.Persona, error) {
	var out []domain.Persona
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// GetPersona fetches a persona by id or returns ErrNotFound.
func GetPersona(ctx context.Context, db *gorm.DB, id string) (*domain.Persona, error) {
	var p domain.Persona
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPersonaByName fetches a persona by its unique name or returns ErrNotFound.
func GetPersonaByName(ctx context.Context, db *gorm.DB, name string) (*domain.Persona, error) {
	var p domain.Persona
	if err := db.WithContext(ctx).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetDefaultPersona returns the default persona or ErrNotFound.
func GetDefaultPersona(ctx context.Context, db *gorm.DB) (*domain.Persona, error) {
	var p domain.Persona
	if err := db.WithContext(ctx).Where("is_default = ?", true).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ClearDefaultPersonas unsets is_default on every persona except exceptID
// (empty clears all).
func ClearDefaultPersonas(ctx context.Context, db *gorm.DB, exceptID string) error {
	q := db.WithContext(ctx).Model(&domain.Persona{}).Where("is_default = ?", true)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	return q.Updates(map[string]any{"is_default": false, "updated_at": time.Now().UTC()}).Error
}

// DeletePersona removes a persona; sessions referencing it fall back to NULL.
func DeletePersona(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Persona{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
