// Package services – PersonaService
//
// PersonaService manages named system prompts. Setting IsDefault on one
// persona clears it on every other persona inside the same transaction, so
// at most one default exists after any sequence of writes.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// PersonaInput is the writable part of a persona. Nil fields are left
// unchanged by Update.
type PersonaInput struct {
	Name         *string
	Description  *string
	SystemPrompt *string
	IsDefault    *bool
}

// PersonaService provides persona CRUD.
type PersonaService struct {
	DB *gorm.DB
}

// List returns personas ordered by name.
func (s *PersonaService) List(ctx context.Context) ([]domain.Persona, error) {
	tr := otel.Tracer("services/PersonaService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return repo.ListPersonas(ctx, s.DB)
}

// Get fetches one persona.
func (s *PersonaService) Get(ctx context.Context, id string) (*domain.Persona, error) {
	tr := otel.Tracer("services/PersonaService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("persona.id", id)))
	defer span.End()

	p, err := repo.GetPersona(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrPersonaNotFound)
	}
	return p, nil
}

// Create inserts a persona. Name and SystemPrompt are required.
func (s *PersonaService) Create(ctx context.Context, in PersonaInput) (*domain.Persona, error) {
	tr := otel.Tracer("services/PersonaService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	p := &domain.Persona{}
	if err := applyPersona(p, in); err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, ErrEmptyName
	}
	if p.SystemPrompt == "" {
		return nil, ErrEmptyPrompt
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreatePersona(ctx, tx, p); err != nil {
			return err
		}
		if p.IsDefault {
			return repo.ClearDefaultPersonas(ctx, tx, p.ID)
		}
		return nil
	})
	if err != nil {
		return nil, duplicate(err)
	}
	return p, nil
}

// Update applies the non-nil fields of in to persona id.
func (s *PersonaService) Update(ctx context.Context, id string, in PersonaInput) (*domain.Persona, error) {
	tr := otel.Tracer("services/PersonaService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("persona.id", id)))
	defer span.End()

	var out *domain.Persona
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.GetPersona(ctx, tx, id)
		if err != nil {
			return notFound(err, ErrPersonaNotFound)
		}
		if err := applyPersona(p, in); err != nil {
			return err
		}
		if err := repo.SavePersona(ctx, tx, p); err != nil {
			return err
		}
		if p.IsDefault {
			if err := repo.ClearDefaultPersonas(ctx, tx, p.ID); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, duplicate(err)
	}
	return out, nil
}

// Delete removes a persona. Sessions that referenced it keep working with
// the default prompt.
func (s *PersonaService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/PersonaService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("persona.id", id)))
	defer span.End()

	return notFound(repo.DeletePersona(ctx, s.DB, id), ErrPersonaNotFound)
}

func applyPersona(p *domain.Persona, in PersonaInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return ErrEmptyName
		}
		p.Name = name
	}
	if in.SystemPrompt != nil {
		prompt := strings.TrimSpace(*in.SystemPrompt)
		if prompt == "" {
			return ErrEmptyPrompt
		}
		p.SystemPrompt = prompt
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			p.Description = nil
		} else {
			p.Description = &d
		}
	}
	if in.IsDefault != nil {
		p.IsDefault = *in.IsDefault
	}
	return nil
}

func duplicate(err error) error {
	if errors.Is(err, repo.ErrDuplicate) {
		return ErrDuplicatePersona
	}
	return err
}
