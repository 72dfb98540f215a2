package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedactingLogger_ScrubsAndAttachesLogger(t *testing.T) {
	buf := captureLog(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Secret"}, SkipPaths: []string{"/health"}}))
	r.GET("/sessions/:id", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("inside")
		c.Status(http.StatusNotFound)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet,
		"/sessions/0b6f1c1e-2c7a-4d7e-9a1b-7b1f2e3d4c5a?mail=ann@example.com&tel=212-555-1212", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.Header.Set("X-Secret", "s3cret")
	req.Header.Set("api-key", "azure-key")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d: %s", len(lines), buf.String())
	}
	var inner, access map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &inner)
	_ = json.Unmarshal([]byte(lines[1]), &access)

	if inner["path"] != "/sessions/:id" || inner["request_id"] == "" {
		t.Fatalf("request logger fields = %v", inner)
	}
	if access["level"] != "warn" || access["status"] != float64(404) {
		t.Fatalf("access = %v", access)
	}
	q, _ := access["query"].(string)
	if strings.Contains(q, "ann@example.com") || strings.Contains(q, "555-1212") {
		t.Fatalf("query not scrubbed: %q", q)
	}
	for _, secret := range []string{"Bearer abc", "s3cret", "azure-key"} {
		if strings.Contains(lines[1], secret) {
			t.Fatalf("secret %q leaked: %s", secret, lines[1])
		}
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("skipped path logged: %s", buf.String())
	}
}

func TestRedact(t *testing.T) {
	got := redact("id=0b6f1c1e-2c7a-4d7e-9a1b-7b1f2e3d4c5a&to=a.b@c.io")
	if got != "id=[REDACTED:id]&to=[REDACTED:email]" {
		t.Fatalf("redact = %q", got)
	}
	if redact("") != "" {
		t.Fatalf("empty")
	}
}
