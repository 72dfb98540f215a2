package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/search"
	"github.com/tbourn/go-rag-backend/internal/services"
	"github.com/tbourn/go-rag-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// DocumentService manages uploads and their ingestion state.
type DocumentService interface {
	// Upload stores files and queues them; replayed reports an idempotent replay.
	Upload(ctx context.Context, files []services.Upload, idemKey string) (docs []domain.Document, replayed bool, err error)
	ListPage(ctx context.Context, offset, limit int) ([]domain.Document, int64, error)
	// Stats returns the row count and latest update time used for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
	Get(ctx context.Context, id string) (*domain.Document, []domain.Chunk, error)
	Delete(ctx context.Context, id string) error
	Reprocess(ctx context.Context, id string) (*domain.Document, error)
}

// SearchService runs similarity search over indexed chunks.
type SearchService interface {
	Search(ctx context.Context, query string, topK *int, threshold *float64) ([]search.Result, error)
}

// SessionService manages chat sessions.
type SessionService interface {
	Create(ctx context.Context, in services.CreateSessionInput, idemKey string) (*domain.ChatSession, bool, error)
	ListPage(ctx context.Context, offset, limit int) ([]domain.ChatSession, int64, error)
	Stats(ctx context.Context) (int64, *time.Time, error)
	Get(ctx context.Context, id string) (*domain.ChatSession, []domain.ChatMessage, error)
	Rename(ctx context.Context, id, title string) (*domain.ChatSession, error)
	Delete(ctx context.Context, id string) error
}

// ChatService runs one conversational turn, emitting tokens as they arrive.
type ChatService interface {
	Send(ctx context.Context, sessionID, content string, emit services.EmitFunc) (*domain.ChatMessage, error)
}

// PersonaService manages personas.
type PersonaService interface {
	List(ctx context.Context) ([]domain.Persona, error)
	Get(ctx context.Context, id string) (*domain.Persona, error)
	Create(ctx context.Context, in services.PersonaInput) (*domain.Persona, error)
	Update(ctx context.Context, id string, in services.PersonaInput) (*domain.Persona, error)
	Delete(ctx context.Context, id string) error
}

// SettingsService reads and edits runtime settings.
type SettingsService interface {
	List(ctx context.Context) ([]domain.SystemSetting, error)
	Update(ctx context.Context, key, value string) (*domain.SystemSetting, error)
}

// QueryService runs read-only SQL.
type QueryService interface {
	Run(ctx context.Context, sql string) (*repo.QueryResult, error)
}

// HealthService checks dependencies.
type HealthService interface {
	Check(ctx context.Context) map[string]string
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Nil members leave their
// routes unregistered by the router.
type Services struct {
	Documents DocumentService
	Search    SearchService
	Sessions  SessionService
	Chat      ChatService
	Personas  PersonaService
	Settings  SettingsService
	Query     QueryService
	Health    HealthService
}

// Handlers groups the HTTP endpoints of the API.
type Handlers struct {
	docs     DocumentService
	search   SearchService
	sessions SessionService
	chat     ChatService
	personas PersonaService
	settings SettingsService
	query    QueryService
	health   HealthService
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		docs:     s.Documents,
		search:   s.Search,
		sessions: s.Sessions,
		chat:     s.Chat,
		personas: s.Personas,
		settings: s.Settings,
		query:    s.Query,
		health:   s.Health,
	}
}

//
// DTOs shared by list endpoints
//

// Pagination carries skip/limit metadata for list responses.
type Pagination struct {
	Skip    int   `json:"skip"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
}

//
// Helpers
//

// clampWindow parses skip and limit query params.
func clampWindow(c *gin.Context) (skip, limit int) {
	skip = utils.AtoiDefault(c.Query("skip"), 0)
	if skip < 0 {
		skip = 0
	}
	limit = utils.AtoiDefault(c.Query("limit"), services.DefaultPageSize)
	if limit < 1 {
		limit = 1
	}
	if limit > services.MaxPageSize {
		limit = services.MaxPageSize
	}
	return
}

// notModified sets a weak ETag from stats and reports whether the client's
// If-None-Match already matches it. Stats failures skip the pre-check.
func notModified(c *gin.Context, kind string, stats func(context.Context) (int64, *time.Time, error), skip, limit int) bool {
	count, latest, err := stats(c.Request.Context())
	if err != nil {
		return false
	}
	etag := utils.WeakETag(kind, count, latest, skip, limit)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func markReplayed(c *gin.Context, replayed bool) {
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
}
