package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tbourn/go-rag-backend/internal/search"
	"github.com/tbourn/go-rag-backend/internal/services"
)

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSearch(t *testing.T) {
	var gotK *int
	var gotTh *float64
	svc := &fakeSearch{fn: func(_ context.Context, q string, topK *int, th *float64) ([]search.Result, error) {
		gotK, gotTh = topK, th
		switch q {
		case "boom":
			return nil, fmt.Errorf("%w: embed: timeout", services.ErrUpstream)
		case "":
			return nil, services.ErrEmptyQuery
		case "none":
			return nil, nil
		}
		return []search.Result{{ChunkID: "c1", DocumentName: "a.txt", Score: 0.9}}, nil
	}}
	r := newTestRouter(Services{Search: svc})

	w := postJSON(t, r, "/search", `{"query":"vpn","top_k":3,"threshold":0.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotK == nil || *gotK != 3 || gotTh == nil || *gotTh != 0.5 {
		t.Fatalf("knobs not forwarded: %v %v", gotK, gotTh)
	}
	var out SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Query != "vpn" || out.Total != 1 || out.Results[0].DocumentName != "a.txt" {
		t.Fatalf("resp=%+v", out)
	}

	w = postJSON(t, r, "/search", `{"query":"vpn"}`)
	if gotK != nil || gotTh != nil {
		t.Fatalf("omitted knobs should be nil")
	}

	w = postJSON(t, r, "/search", `{"query":"none"}`)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"results":[]`)) {
		t.Fatalf("empty results body=%s", w.Body.String())
	}

	if w = postJSON(t, r, "/search", `{"query":""}`); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty query status=%d", w.Code)
	}
	if w = postJSON(t, r, "/search", `{"query":"boom"}`); w.Code != http.StatusBadGateway {
		t.Fatalf("upstream status=%d", w.Code)
	}
	if w = postJSON(t, r, "/search", `{"query":`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", w.Code)
	}
}
