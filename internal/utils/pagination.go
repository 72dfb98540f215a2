// Package utils provides small helpers shared by the HTTP layer.
package utils

import (
	"fmt"
	"strconv"
	"time"
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// WeakETag builds a weak validator for a list response from the collection
// size, the latest update time and the requested window.
func WeakETag(kind string, count int64, latest *time.Time, skip, limit int) string {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%d:%d:%d:%d"`, kind, count, ts, skip, limit)
}
