package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/services"
)

func TestCreateSession(t *testing.T) {
	var got services.CreateSessionInput
	var gotKey string
	svc := &fakeSessions{create: func(_ context.Context, in services.CreateSessionInput, key string) (*domain.ChatSession, bool, error) {
		got, gotKey = in, key
		if in.LLMProvider == "nope" {
			return nil, false, services.ErrUnknownProvider
		}
		return &domain.ChatSession{ID: "s1", Title: domain.DefaultSessionTitle, LLMProvider: "ollama"}, key == "again", nil
	}}
	r := newTestRouter(Services{Sessions: svc})

	// no body at all
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.Title != "" || got.LLMProvider != "" || got.PersonaID != nil {
		t.Fatalf("input=%+v", got)
	}

	w = postJSON(t, r, "/chat/sessions", `{"title":"  Billing  ","llm_provider":"azure_openai","persona_id":"p1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
	if got.Title != "Billing" || got.LLMProvider != "azure_openai" || got.PersonaID == nil || *got.PersonaID != "p1" {
		t.Fatalf("input=%+v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat/sessions", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, "again")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" || gotKey != "again" {
		t.Fatalf("replay status=%d headers=%v key=%q", w.Code, w.Header(), gotKey)
	}

	if w = postJSON(t, r, "/chat/sessions", `{"llm_provider":"nope"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider status=%d", w.Code)
	}
}

func TestSessionReadRenameDelete(t *testing.T) {
	ts := time.Now()
	var renamed string
	svc := &fakeSessions{
		stats: func(context.Context) (int64, *time.Time, error) { return 1, &ts, nil },
		listPage: func(context.Context, int, int) ([]domain.ChatSession, int64, error) {
			return []domain.ChatSession{{ID: "s1"}}, 1, nil
		},
		get: func(_ context.Context, id string) (*domain.ChatSession, []domain.ChatMessage, error) {
			if id != "s1" {
				return nil, nil, services.ErrSessionNotFound
			}
			return &domain.ChatSession{ID: "s1", Title: "T"}, []domain.ChatMessage{
				{ID: "m1", Role: domain.RoleUser, Content: "hi"},
				{ID: "m2", Role: domain.RoleAssistant, Content: "hello"},
			}, nil
		},
		rename: func(_ context.Context, id, title string) (*domain.ChatSession, error) {
			renamed = title
			return &domain.ChatSession{ID: id, Title: title}, nil
		},
		del: func(_ context.Context, id string) error {
			if id != "s1" {
				return services.ErrSessionNotFound
			}
			return nil
		},
	}
	r := newTestRouter(Services{Sessions: svc})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/sessions", nil))
	var list ListSessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Sessions) != 1 || list.Pagination.HasNext {
		t.Fatalf("list=%s err=%v", w.Body.String(), err)
	}
	if list.Pagination.Limit != services.DefaultPageSize {
		t.Fatalf("default limit=%d", list.Pagination.Limit)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/sessions/s1", nil))
	var detail SessionDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("json: %v", err)
	}
	if detail.ID != "s1" || len(detail.Messages) != 2 || detail.Messages[1].Role != domain.RoleAssistant {
		t.Fatalf("detail=%+v", detail)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chat/sessions/zzz", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing status=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPatch, "/chat/sessions/s1", bytes.NewBufferString(`{"title":"Renamed"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || renamed != "Renamed" {
		t.Fatalf("rename status=%d title=%q", w.Code, renamed)
	}

	req = httptest.NewRequest(http.MethodPatch, "/chat/sessions/s1", bytes.NewBufferString(`{"title":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank rename status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/chat/sessions/s1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/chat/sessions/zzz", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("delete missing status=%d", w.Code)
	}
}
