package repo

import (
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

// newTestDB returns an isolated in-memory database with foreign keys on,
// migrating the given models when any are passed.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// newSchemaDB opens a test database with the full application schema.
func newSchemaDB(t *testing.T) *gorm.DB {
	t.Helper()
	return newTestDB(t,
		&domain.Document{}, &domain.Chunk{}, &domain.Persona{}, &domain.ChatSession{},
		&domain.ChatMessage{}, &domain.SystemSetting{}, &domain.Idempotency{},
	)
}
