package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup, seen *struct {
	key    string
	replay bool
	bypass bool
}) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{
		MaxLen: 16,
		Scopes: map[string]string{"POST /docs": "documents.upload"},
	}, lookup))
	h := func(c *gin.Context) {
		seen.key, _ = GetIdempotencyKey(c)
		seen.replay = IsReplay(c)
		seen.bypass = IsRateBypass(c)
		c.Status(http.StatusNoContent)
	}
	r.POST("/docs", h)
	r.POST("/other", h)
	return r
}

func doPost(r http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ScopedLookup(t *testing.T) {
	var seen struct {
		key    string
		replay bool
		bypass bool
	}
	var gotScope, gotKey string
	lookup := func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		gotScope, gotKey = scope, key
		return key == "known", nil
	}
	r := idemRouter(lookup, &seen)

	if w := doPost(r, "/docs", "fresh"); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if seen.key != "fresh" || seen.replay || seen.bypass || gotScope != "documents.upload" || gotKey != "fresh" {
		t.Fatalf("fresh: seen=%+v scope=%q", seen, gotScope)
	}

	doPost(r, "/docs", "known")
	if !seen.replay || !seen.bypass {
		t.Fatalf("known key not flagged: %+v", seen)
	}
}

func TestIdempotency_UnscopedRouteAndNoHeader(t *testing.T) {
	var seen struct {
		key    string
		replay bool
		bypass bool
	}
	called := false
	r := idemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	}, &seen)

	doPost(r, "/other", "known")
	doPost(r, "/docs", "")
	if called || seen.key != "" || seen.replay {
		t.Fatalf("lookup called=%v seen=%+v", called, seen)
	}
}

func TestIdempotency_InvalidKey(t *testing.T) {
	var seen struct {
		key    string
		replay bool
		bypass bool
	}
	r := idemRouter(nil, &seen)
	for _, key := range []string{strings.Repeat("a", 17), "white space", "semi;colon"} {
		w := doPost(r, "/docs", key)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("%q: %d %s", key, w.Code, w.Body.String())
		}
	}
}

func TestIdempotency_LookupErrorIsMiss(t *testing.T) {
	var seen struct {
		key    string
		replay bool
		bypass bool
	}
	r := idemRouter(func(context.Context, string, string, time.Time) (bool, error) {
		return true, context.DeadlineExceeded
	}, &seen)
	doPost(r, "/docs", "k")
	if seen.replay {
		t.Fatalf("lookup error treated as replay")
	}
}
