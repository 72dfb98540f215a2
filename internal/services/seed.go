package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
)

// Seed is the YAML layout of SEED_FILE:
//
//	personas:
//	  - name: Support
//	    description: Friendly helpdesk tone
//	    system_prompt: You answer support questions.
//	    is_default: true
//	settings:
//	  - key: ui.theme
//	    value: dark
//	    category: ui
type Seed struct {
	Personas []SeedPersona `yaml:"personas"`
	Settings []SeedSetting `yaml:"settings"`
}

// SeedPersona is one persona entry.
type SeedPersona struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
	IsDefault    bool   `yaml:"is_default"`
}

// SeedSetting is one setting entry.
type SeedSetting struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

// ParseSeed decodes a seed document. Unknown fields are rejected.
func ParseSeed(data []byte) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &s, nil
}

// LoadSeed reads path and applies it. An empty path is a no-op.
func LoadSeed(ctx context.Context, db *gorm.DB, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	s, err := ParseSeed(data)
	if err != nil {
		return err
	}
	return ApplySeed(ctx, db, s)
}

// ApplySeed inserts personas and settings that do not exist yet. Existing
// names and keys are left untouched, so running it twice changes nothing.
// A seeded default only wins when no default persona exists.
func ApplySeed(ctx context.Context, db *gorm.DB, s *Seed) error {
	personas := &PersonaService{DB: db}
	var added, skipped int

	for _, sp := range s.Personas {
		if _, err := repo.GetPersonaByName(ctx, db, strings.TrimSpace(sp.Name)); err == nil {
			skipped++
			continue
		}
		in := PersonaInput{
			Name:         &sp.Name,
			SystemPrompt: &sp.SystemPrompt,
		}
		if sp.Description != "" {
			in.Description = &sp.Description
		}
		if sp.IsDefault {
			if _, err := repo.GetDefaultPersona(ctx, db); err != nil {
				def := true
				in.IsDefault = &def
			}
		}
		if _, err := personas.Create(ctx, in); err != nil {
			return fmt.Errorf("seed persona %q: %w", sp.Name, err)
		}
		added++
	}

	for _, ss := range s.Settings {
		key := strings.TrimSpace(ss.Key)
		if key == "" {
			return fmt.Errorf("seed setting: %w", ErrEmptyName)
		}
		row := &domain.SystemSetting{Key: key, Value: ss.Value, Category: ss.Category}
		if ss.Description != "" {
			d := ss.Description
			row.Description = &d
		}
		ok, err := repo.InsertSettingIfMissing(ctx, db, row)
		if err != nil {
			return fmt.Errorf("seed setting %q: %w", key, err)
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}

	log.Info().Int("added", added).Int("skipped", skipped).Msg("seed applied")
	return nil
}
