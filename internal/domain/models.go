// Package domain defines the persistence models for the retrieval pipeline:
// uploaded documents and their embedded chunks, chat sessions and messages,
// personas, and system settings. These types are mapped with GORM and shared
// across the repository and service layers.
package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// DocumentStatus is the lifecycle state of an ingested document.
type DocumentStatus string

// Document lifecycle: Pending -> Processing -> Completed | Failed.
const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultSessionTitle is assigned to sessions created without a title.
const DefaultSessionTitle = "New Chat"

// Document is an uploaded source file. It is created on upload and mutated
// only by the ingestion pipeline afterwards.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Filename: base name of the uploaded file.
//   - FileType: lowercase extension without the dot (txt, pdf, md).
//   - FileSize: size of the stored upload in bytes.
//   - Status: lifecycle state, see DocumentStatus.
//   - ChunkCount: number of chunks produced by the last successful run.
//   - ErrorMessage: failure description of the last run, nil otherwise.
type Document struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	Filename     string         `json:"filename"      gorm:"type:varchar(255);not null"`
	FileType     string         `json:"file_type"     gorm:"type:varchar(16);not null"`
	FileSize     int64          `json:"file_size"     gorm:"not null;default:0"`
	Status       DocumentStatus `json:"status"        gorm:"type:varchar(16);not null;default:'pending';index"`
	ChunkCount   int            `json:"chunk_count"   gorm:"not null;default:0"`
	ErrorMessage *string        `json:"error_message" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"    gorm:"index"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// Chunk is a retrievable unit of a document together with its embedding.
// ChunkIndex is dense and zero-based within one processing run.
type Chunk struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	DocumentID string    `json:"document_id" gorm:"type:char(36);not null;index:idx_doc_chunks,priority:1"`
	ChunkIndex int       `json:"chunk_index" gorm:"not null;index:idx_doc_chunks,priority:2"`
	Content    string    `json:"content"     gorm:"type:text;not null"`
	TokenCount int       `json:"token_count" gorm:"not null;default:0"`
	Embedding  Vector    `json:"-"           gorm:"type:blob;not null"`
	CreatedAt  time.Time `json:"created_at"`

	// Document is the owning document. Chunks are cascade-deleted with it.
	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chunk.
func (Chunk) TableName() string { return "chunks" }

// Persona is a named system prompt. At most one persona is the default.
type Persona struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(100);not null;uniqueIndex"`
	Description  *string   `json:"description"   gorm:"type:text"`
	SystemPrompt string    `json:"system_prompt" gorm:"type:text;not null"`
	IsDefault    bool      `json:"is_default"    gorm:"not null;default:false;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Persona.
func (Persona) TableName() string { return "personas" }

// ChatSession is a conversation bound to one generator backend and an
// optional persona.
//
// TitleCustomized is set once a caller supplies a title explicitly; such
// sessions are never auto-titled.
type ChatSession struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	Title           string    `json:"title"            gorm:"type:varchar(255);not null;default:'New Chat'"`
	TitleCustomized bool      `json:"-"                gorm:"not null;default:false"`
	PersonaID       *string   `json:"persona_id"       gorm:"type:char(36);index"`
	LLMProvider     string    `json:"llm_provider"     gorm:"type:varchar(32);not null;default:'ollama'"`
	CreatedAt       time.Time `json:"created_at"       gorm:"index"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Persona is nulled out when the persona is deleted.
	Persona *Persona `json:"-" gorm:"foreignKey:PersonaID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }

// ChatMessage is one turn of a conversation. ContextChunks records the chunk
// ids that grounded an assistant reply; it is a historical record and is not
// resolved back into chunks.
type ChatMessage struct {
	ID            string         `json:"id"             gorm:"type:char(36);primaryKey"`
	SessionID     string         `json:"session_id"     gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Role          string         `json:"role"           gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content       string         `json:"content"        gorm:"type:text;not null"`
	ContextChunks datatypes.JSON `json:"context_chunks" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"     gorm:"index:idx_session_msgs,priority:2"`

	// Session is the parent conversation. Messages are cascade-deleted with it.
	Session ChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// ChunkIDs decodes ContextChunks. It returns nil when no provenance was recorded.
func (m ChatMessage) ChunkIDs() []string {
	if len(m.ContextChunks) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(m.ContextChunks, &ids); err != nil {
		return nil
	}
	return ids
}

// EncodeChunkIDs builds a ContextChunks value. An empty list encodes as NULL.
func EncodeChunkIDs(ids []string) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// SystemSetting is a key/value configuration entry editable at runtime.
type SystemSetting struct {
	Key         string    `json:"key"         gorm:"type:varchar(100);primaryKey"`
	Value       string    `json:"value"       gorm:"type:text;not null"`
	Category    string    `json:"category"    gorm:"type:varchar(50);not null;default:'general';index"`
	Description *string   `json:"description" gorm:"type:text"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for SystemSetting.
func (SystemSetting) TableName() string { return "system_settings" }
