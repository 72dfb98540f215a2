package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is gorm.ErrRecordNotFound under a repository name so callers
	// need not import gorm to classify misses.
	ErrNotFound = gorm.ErrRecordNotFound

	// ErrDuplicate reports a write rejected by a unique index.
	ErrDuplicate = errors.New("duplicate")
)

// The pure-Go driver surfaces unique violations as text only.
var uniqueMarkers = []string{"unique constraint failed", "constraint failed: unique"}

func isDuplicate(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range uniqueMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
