package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/llm"
	"github.com/tbourn/go-rag-backend/internal/search"
)

// newTestDB opens a private in-memory database with the full schema on a
// single connection.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&domain.Document{}, &domain.Chunk{}, &domain.Persona{}, &domain.ChatSession{},
		&domain.ChatMessage{}, &domain.SystemSetting{}, &domain.Idempotency{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- fakes -----

type fakeRetriever struct {
	fn    func(ctx context.Context, query string, topK int, floor float64) ([]search.Result, error)
	calls int
}

func (r *fakeRetriever) Search(ctx context.Context, query string, topK int, floor float64) ([]search.Result, error) {
	r.calls++
	if r.fn == nil {
		return nil, nil
	}
	return r.fn(ctx, query, topK, floor)
}

type fakeGenerator struct {
	name    string
	tokens  []string
	failAt  int // index of the token replaced by an error; -1 for none
	healthy bool

	got []llm.Message
}

func newFakeGenerator(name string, tokens ...string) *fakeGenerator {
	return &fakeGenerator{name: name, tokens: tokens, failAt: -1, healthy: true}
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(ctx context.Context, msgs []llm.Message) (string, error) {
	g.got = msgs
	out := ""
	for _, t := range g.tokens {
		out += t
	}
	return out, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, msgs []llm.Message) (<-chan llm.Token, error) {
	g.got = msgs
	ch := make(chan llm.Token)
	go func() {
		defer close(ch)
		for i, t := range g.tokens {
			tok := llm.Token{Text: t}
			if i == g.failAt {
				tok = llm.Token{Err: fmt.Errorf("%w: stream broke", llm.ErrUpstream)}
			}
			select {
			case ch <- tok:
			case <-ctx.Done():
				return
			}
			if tok.Err != nil {
				return
			}
		}
	}()
	return ch, nil
}

func (g *fakeGenerator) HealthCheck(ctx context.Context) bool { return g.healthy }

type fakeRegistry map[string]llm.Generator

func (r fakeRegistry) Get(name string) (llm.Generator, error) {
	g, ok := r[name]
	if !ok {
		return nil, llm.ErrUnknownProvider
	}
	return g, nil
}

func (r fakeRegistry) Has(name string) bool { _, ok := r[name]; return ok }

func (r fakeRegistry) Names() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	return out
}

type recordingMetrics struct {
	ingestions []string
	chunks     int
	turns      []string
	tokens     map[string]int
}

func (m *recordingMetrics) IngestionFinished(status string, chunks int) {
	m.ingestions = append(m.ingestions, status)
	m.chunks += chunks
}

func (m *recordingMetrics) ChatTurn(outcome string) { m.turns = append(m.turns, outcome) }

func (m *recordingMetrics) StreamedToken(provider string) {
	if m.tokens == nil {
		m.tokens = map[string]int{}
	}
	m.tokens[provider]++
}

var errBoom = errors.New("boom")
