// Package middleware holds the Gin middleware shared by every route: request
// ids, panic recovery, redacting access logs, rate limiting, idempotency,
// Prometheus metrics and security headers.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	maxQueryLogLength = 2048
)

// RequestID tags the request with the caller's X-Request-ID, minting a UUID
// when absent, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Recovery converts a handler panic into the standard 500 envelope. Once a
// stream has written bytes the status can no longer change, so the request
// is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				recovered(c, rec)
			}
		}()
		c.Next()
	}
}

func recovered(c *gin.Context, rec any) {
	id := asString(c.Value(requestIDKey))
	LoggerFrom(c).Error().
		Interface("panic", rec).
		Bytes("stack", debug.Stack()).
		Str("request_id", id).
		Msg("panic recovered")

	if c.Writer.Written() {
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"request_id": id,
		"code":       "internal_error",
		"message":    "internal server error",
	})
}

// LoggerFrom returns the logger RedactingLogger attached to c, falling back
// to the global logger.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if lg, ok := c.Value(loggerKey).(*zerolog.Logger); ok {
		return lg
	}
	lg := log.Logger
	return &lg
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at n bytes, marking the cut. n <= 0 leaves s whole.
func truncate(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n] + "…"
	}
	return s
}
