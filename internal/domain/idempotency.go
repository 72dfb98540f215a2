package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Idempotency represents a recorded result of a previously processed request,
// keyed by (scope, key). Scope identifies the operation ("documents.upload",
// "sessions.create"); ResourceIDs holds the ids created by the original
// request so a replay can return the same resources without re-executing
// side effects.
type Idempotency struct {
	ID          string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	Scope       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:1"`
	Key         string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_scope_key,priority:2"`
	ResourceIDs datatypes.JSON `gorm:"type:TEXT NOT NULL"`
	Status      int            `gorm:"type:INTEGER NOT NULL"`
	CreatedAt   time.Time      `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt   time.Time      `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// IDs decodes ResourceIDs.
func (r Idempotency) IDs() ([]string, error) {
	if len(r.ResourceIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := json.Unmarshal(r.ResourceIDs, &ids)
	return ids, err
}
