package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_AllowDenyBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, 1, nil)

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(h http.Handler) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		return w
	}
	if w := get(r); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := get(r)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second = %d", w.Code)
	}

	bypass := gin.New()
	bypass.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true) }, rl.Handler())
	bypass.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	if w := get(bypass); w.Code != http.StatusOK {
		t.Fatalf("bypass = %d", w.Code)
	}
}

func TestRateLimiter_IdleBucketExpires(t *testing.T) {
	rl := newRateLimiter(1, 1, nil, 50*time.Millisecond)

	first := rl.limiter("a")
	if rl.limiter("a") != first {
		t.Fatalf("live bucket not reused")
	}
	if !first.Allow() || first.Allow() {
		t.Fatalf("burst of 1 not enforced")
	}

	time.Sleep(150 * time.Millisecond)
	if fresh := rl.limiter("a"); fresh == first || !fresh.Allow() {
		t.Fatalf("idle bucket survived expiry")
	}
}
