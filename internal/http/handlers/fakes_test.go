package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/search"
	"github.com/tbourn/go-rag-backend/internal/services"
)

type fakeDocs struct {
	upload    func(ctx context.Context, files []services.Upload, key string) ([]domain.Document, bool, error)
	listPage  func(ctx context.Context, offset, limit int) ([]domain.Document, int64, error)
	stats     func(ctx context.Context) (int64, *time.Time, error)
	get       func(ctx context.Context, id string) (*domain.Document, []domain.Chunk, error)
	del       func(ctx context.Context, id string) error
	reprocess func(ctx context.Context, id string) (*domain.Document, error)
}

func (f *fakeDocs) Upload(ctx context.Context, files []services.Upload, key string) ([]domain.Document, bool, error) {
	return f.upload(ctx, files, key)
}
func (f *fakeDocs) ListPage(ctx context.Context, offset, limit int) ([]domain.Document, int64, error) {
	return f.listPage(ctx, offset, limit)
}
func (f *fakeDocs) Stats(ctx context.Context) (int64, *time.Time, error) { return f.stats(ctx) }
func (f *fakeDocs) Get(ctx context.Context, id string) (*domain.Document, []domain.Chunk, error) {
	return f.get(ctx, id)
}
func (f *fakeDocs) Delete(ctx context.Context, id string) error { return f.del(ctx, id) }
func (f *fakeDocs) Reprocess(ctx context.Context, id string) (*domain.Document, error) {
	return f.reprocess(ctx, id)
}

type fakeSearch struct {
	fn func(ctx context.Context, q string, topK *int, th *float64) ([]search.Result, error)
}

func (f *fakeSearch) Search(ctx context.Context, q string, topK *int, th *float64) ([]search.Result, error) {
	return f.fn(ctx, q, topK, th)
}

type fakeSessions struct {
	create   func(ctx context.Context, in services.CreateSessionInput, key string) (*domain.ChatSession, bool, error)
	listPage func(ctx context.Context, offset, limit int) ([]domain.ChatSession, int64, error)
	stats    func(ctx context.Context) (int64, *time.Time, error)
	get      func(ctx context.Context, id string) (*domain.ChatSession, []domain.ChatMessage, error)
	rename   func(ctx context.Context, id, title string) (*domain.ChatSession, error)
	del      func(ctx context.Context, id string) error
}

func (f *fakeSessions) Create(ctx context.Context, in services.CreateSessionInput, key string) (*domain.ChatSession, bool, error) {
	return f.create(ctx, in, key)
}
func (f *fakeSessions) ListPage(ctx context.Context, offset, limit int) ([]domain.ChatSession, int64, error) {
	return f.listPage(ctx, offset, limit)
}
func (f *fakeSessions) Stats(ctx context.Context) (int64, *time.Time, error) { return f.stats(ctx) }
func (f *fakeSessions) Get(ctx context.Context, id string) (*domain.ChatSession, []domain.ChatMessage, error) {
	return f.get(ctx, id)
}
func (f *fakeSessions) Rename(ctx context.Context, id, title string) (*domain.ChatSession, error) {
	return f.rename(ctx, id, title)
}
func (f *fakeSessions) Delete(ctx context.Context, id string) error { return f.del(ctx, id) }

type fakeChat struct {
	fn func(ctx context.Context, sessionID, content string, emit services.EmitFunc) (*domain.ChatMessage, error)
}

func (f *fakeChat) Send(ctx context.Context, sessionID, content string, emit services.EmitFunc) (*domain.ChatMessage, error) {
	return f.fn(ctx, sessionID, content, emit)
}

type fakePersonas struct {
	list   func(ctx context.Context) ([]domain.Persona, error)
	get    func(ctx context.Context, id string) (*domain.Persona, error)
	create func(ctx context.Context, in services.PersonaInput) (*domain.Persona, error)
	update func(ctx context.Context, id string, in services.PersonaInput) (*domain.Persona, error)
	del    func(ctx context.Context, id string) error
}

func (f *fakePersonas) List(ctx context.Context) ([]domain.Persona, error) { return f.list(ctx) }
func (f *fakePersonas) Get(ctx context.Context, id string) (*domain.Persona, error) {
	return f.get(ctx, id)
}
func (f *fakePersonas) Create(ctx context.Context, in services.PersonaInput) (*domain.Persona, error) {
	return f.create(ctx, in)
}
func (f *fakePersonas) Update(ctx context.Context, id string, in services.PersonaInput) (*domain.Persona, error) {
	return f.update(ctx, id, in)
}
func (f *fakePersonas) Delete(ctx context.Context, id string) error { return f.del(ctx, id) }

type fakeSettings struct {
	list   func(ctx context.Context) ([]domain.SystemSetting, error)
	update func(ctx context.Context, key, value string) (*domain.SystemSetting, error)
}

func (f *fakeSettings) List(ctx context.Context) ([]domain.SystemSetting, error) { return f.list(ctx) }
func (f *fakeSettings) Update(ctx context.Context, key, value string) (*domain.SystemSetting, error) {
	return f.update(ctx, key, value)
}

type fakeQuery struct {
	fn func(ctx context.Context, sql string) (*repo.QueryResult, error)
}

func (f *fakeQuery) Run(ctx context.Context, sql string) (*repo.QueryResult, error) {
	return f.fn(ctx, sql)
}

type fakeHealth map[string]string

func (f fakeHealth) Check(context.Context) map[string]string { return f }

// newTestRouter mounts every handler the way the production router does,
// minus the edge middleware. The idempotency key is copied into the context
// by the real validator with a lookup that never replays.
func newTestRouter(s Services) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		Scopes: map[string]string{
			"POST /documents/upload": services.ScopeDocumentUpload,
			"POST /chat/sessions":    services.ScopeSessionCreate,
		},
	}, nil))

	h := New(s)
	r.POST("/documents/upload", h.UploadDocuments)
	r.GET("/documents", h.ListDocuments)
	r.GET("/documents/:id", h.GetDocument)
	r.DELETE("/documents/:id", h.DeleteDocument)
	r.POST("/documents/:id/reprocess", h.ReprocessDocument)
	r.POST("/search", h.Search)
	r.POST("/chat/sessions", h.CreateSession)
	r.GET("/chat/sessions", h.ListSessions)
	r.GET("/chat/sessions/:id", h.GetSession)
	r.PATCH("/chat/sessions/:id", h.RenameSession)
	r.DELETE("/chat/sessions/:id", h.DeleteSession)
	r.POST("/chat/sessions/:id/messages", h.SendMessage)
	r.GET("/admin/personas", h.ListPersonas)
	r.POST("/admin/personas", h.CreatePersona)
	r.GET("/admin/personas/:id", h.GetPersona)
	r.PUT("/admin/personas/:id", h.UpdatePersona)
	r.DELETE("/admin/personas/:id", h.DeletePersona)
	r.GET("/admin/settings", h.ListSettings)
	r.PUT("/admin/settings/:key", h.UpdateSetting)
	r.POST("/admin/db/query", h.RunQuery)
	r.GET("/admin/health", h.AdminHealth)
	return r
}
