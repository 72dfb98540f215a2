package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Document{}).TableName():      "documents",
		(Chunk{}).TableName():         "chunks",
		(ChatSession{}).TableName():   "chat_sessions",
		(ChatMessage{}).TableName():   "chat_messages",
		(Persona{}).TableName():       "personas",
		(SystemSetting{}).TableName(): "system_settings",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&Document{}, &Chunk{}, &Persona{}, &ChatSession{}, &ChatMessage{}, &SystemSetting{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	if !m.HasIndex(&Chunk{}, "idx_doc_chunks") {
		t.Fatalf("expected index idx_doc_chunks on chunks")
	}
	if !m.HasIndex(&ChatMessage{}, "idx_session_msgs") {
		t.Fatalf("expected index idx_session_msgs on chat_messages")
	}

	now := time.Now().UTC()
	doc := &Document{ID: "d1", Filename: "a.txt", FileType: "txt", Status: StatusCompleted, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("insert document: %v", err)
	}
	ch := &Chunk{ID: "k1", DocumentID: "d1", ChunkIndex: 0, Content: "alpha", TokenCount: 1, Embedding: Vector{1, 0}, CreatedAt: now}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("insert chunk: %v", err)
	}

	p := &Persona{ID: "p1", Name: "Helper", SystemPrompt: "be nice", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("insert persona: %v", err)
	}
	pid := "p1"
	s := &ChatSession{ID: "s1", Title: DefaultSessionTitle, PersonaID: &pid, LLMProvider: "ollama", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	msg := &ChatMessage{ID: "m1", SessionID: "s1", Role: RoleUser, Content: "hi", CreatedAt: now}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}

	// Role check constraint rejects system rows.
	bad := &ChatMessage{ID: "m2", SessionID: "s1", Role: RoleSystem, Content: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected role check violation")
	}

	// CASCADE: deleting the document removes its chunks.
	if err := db.Delete(&Document{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete document: %v", err)
	}
	var cnt int64
	db.Model(&Chunk{}).Where("document_id = ?", "d1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected chunks to cascade-delete, got %d", cnt)
	}

	// SET NULL: deleting the persona detaches the session.
	if err := db.Delete(&Persona{}, "id = ?", "p1").Error; err != nil {
		t.Fatalf("delete persona: %v", err)
	}
	var got ChatSession
	if err := db.First(&got, "id = ?", "s1").Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.PersonaID != nil {
		t.Fatalf("expected persona_id to be NULL, got %v", *got.PersonaID)
	}

	// CASCADE: deleting the session removes its messages.
	if err := db.Delete(&ChatSession{}, "id = ?", "s1").Error; err != nil {
		t.Fatalf("delete session: %v", err)
	}
	db.Model(&ChatMessage{}).Where("session_id = ?", "s1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
}

func TestChatMessage_ChunkIDs(t *testing.T) {
	if EncodeChunkIDs(nil) != nil {
		t.Fatalf("empty provenance should encode as NULL")
	}
	m := ChatMessage{ContextChunks: EncodeChunkIDs([]string{"a", "b"})}
	ids := m.ChunkIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("ChunkIDs = %v", ids)
	}
	if (ChatMessage{}).ChunkIDs() != nil {
		t.Fatalf("expected nil ids for empty column")
	}
}
