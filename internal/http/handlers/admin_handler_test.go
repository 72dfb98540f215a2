package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/services"
)

func TestPersonaEndpoints(t *testing.T) {
	var created services.PersonaInput
	var updated services.PersonaInput
	svc := &fakePersonas{
		list: func(context.Context) ([]domain.Persona, error) { return nil, nil },
		get: func(_ context.Context, id string) (*domain.Persona, error) {
			return nil, services.ErrPersonaNotFound
		},
		create: func(_ context.Context, in services.PersonaInput) (*domain.Persona, error) {
			created = in
			if *in.Name == "dup" {
				return nil, services.ErrDuplicatePersona
			}
			return &domain.Persona{ID: "p1", Name: *in.Name, SystemPrompt: *in.SystemPrompt, IsDefault: in.IsDefault != nil && *in.IsDefault}, nil
		},
		update: func(_ context.Context, id string, in services.PersonaInput) (*domain.Persona, error) {
			updated = in
			return &domain.Persona{ID: id, Name: "kept"}, nil
		},
		del: func(context.Context, string) error { return nil },
	}
	r := newTestRouter(Services{Personas: svc})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/personas", nil))
	if w.Code != http.StatusOK || w.Body.String() != "[]" {
		t.Fatalf("list status=%d body=%s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/admin/personas", `{"name":"Support","system_prompt":"Be brief.","is_default":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d", w.Code)
	}
	if created.Description != nil || created.IsDefault == nil || !*created.IsDefault {
		t.Fatalf("create input=%+v", created)
	}

	if w = postJSON(t, r, "/admin/personas", `{"name":"dup","system_prompt":"x"}`); w.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/admin/personas/p1", bytes.NewBufferString(`{"description":"new"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || updated.Name != nil || updated.Description == nil || *updated.Description != "new" {
		t.Fatalf("update status=%d input=%+v", w.Code, updated)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/personas/zzz", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/personas/p1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}
}

func TestSettingEndpoints(t *testing.T) {
	svc := &fakeSettings{
		list: func(context.Context) ([]domain.SystemSetting, error) {
			return []domain.SystemSetting{{Key: "top_k", Value: "5", Category: "retrieval"}}, nil
		},
		update: func(_ context.Context, key, value string) (*domain.SystemSetting, error) {
			if key != "top_k" {
				return nil, services.ErrSettingNotFound
			}
			return &domain.SystemSetting{Key: key, Value: value}, nil
		},
	}
	r := newTestRouter(Services{Settings: svc})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	var list []domain.SystemSetting
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list=%s err=%v", w.Body.String(), err)
	}

	put := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	w = put("/admin/settings/top_k", `{"value":""}`)
	var s domain.SystemSetting
	if err := json.Unmarshal(w.Body.Bytes(), &s); err != nil || w.Code != http.StatusOK || s.Value != "" {
		t.Fatalf("update status=%d body=%s", w.Code, w.Body.String())
	}
	if w = put("/admin/settings/top_k", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing value status=%d", w.Code)
	}
	if w = put("/admin/settings/nope", `{"value":"1"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown key status=%d", w.Code)
	}
}

func TestRunQuery(t *testing.T) {
	svc := &fakeQuery{fn: func(_ context.Context, sql string) (*repo.QueryResult, error) {
		switch sql {
		case "DROP TABLE documents":
			return nil, services.ErrForbiddenQuery
		case "SELECT nope":
			return nil, fmt.Errorf("%w: no such column: nope", services.ErrQueryFailed)
		}
		return &repo.QueryResult{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}, RowCount: 1}, nil
	}}
	r := newTestRouter(Services{Query: svc})

	w := postJSON(t, r, "/admin/db/query", `{"sql":"SELECT 1 AS n"}`)
	var res repo.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || res.RowCount != 1 || res.Columns[0] != "n" {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}

	w = postJSON(t, r, "/admin/db/query", `{"sql":"DROP TABLE documents"}`)
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusUnprocessableEntity || er.Message != services.ErrForbiddenQuery.Error() {
		t.Fatalf("forbidden status=%d envelope=%+v", w.Code, er)
	}

	if w = postJSON(t, r, "/admin/db/query", `{"sql":"SELECT nope"}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("sql error status=%d", w.Code)
	}
}

func TestAdminHealth(t *testing.T) {
	r := newTestRouter(Services{Health: fakeHealth{"database": "healthy", "ollama": "unhealthy"}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var m map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil || m["ollama"] != "unhealthy" || m["database"] != "healthy" {
		t.Fatalf("body=%s", w.Body.String())
	}
}
