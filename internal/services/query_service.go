// Package services – QueryService
//
// QueryService runs ad-hoc read-only SQL for administrators. Statements
// whose first keyword can modify data or the schema are rejected up front;
// everything else executes on a connection pinned to PRAGMA query_only, so
// writes smuggled past the keyword check still fail inside SQLite.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"

	"github.com/tbourn/go-rag-backend/internal/repo"
)

var forbiddenKeywords = map[string]struct{}{
	"INSERT": {}, "UPDATE": {}, "DELETE": {}, "DROP": {}, "ALTER": {},
	"TRUNCATE": {}, "CREATE": {}, "GRANT": {}, "REVOKE": {},
	"REPLACE": {}, "ATTACH": {}, "DETACH": {}, "PRAGMA": {}, "VACUUM": {},
}

// QueryService executes read-only statements.
type QueryService struct {
	DB *gorm.DB
}

// Run executes sql and returns its rows.
func (s *QueryService) Run(ctx context.Context, sql string) (*repo.QueryResult, error) {
	tr := otel.Tracer("services/QueryService")
	ctx, span := tr.Start(ctx, "Run")
	defer span.End()

	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, ErrEmptyQuery
	}
	if _, bad := forbiddenKeywords[firstKeyword(sql)]; bad {
		return nil, ErrForbiddenQuery
	}

	res, err := repo.ReadOnlyQuery(ctx, s.DB, sql)
	if err != nil {
		log.Debug().Err(err).Msg("admin query failed")
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return res, nil
}

// firstKeyword returns the upper-cased leading word of sql, skipping
// leading comments and parentheses.
func firstKeyword(sql string) string {
	for {
		sql = strings.TrimLeftFunc(sql, func(r rune) bool { return unicode.IsSpace(r) || r == '(' })
		switch {
		case strings.HasPrefix(sql, "--"):
			i := strings.IndexByte(sql, '\n')
			if i < 0 {
				return ""
			}
			sql = sql[i+1:]
		case strings.HasPrefix(sql, "/*"):
			i := strings.Index(sql, "*/")
			if i < 0 {
				return ""
			}
			sql = sql[i+2:]
		default:
			end := strings.IndexFunc(sql, func(r rune) bool {
				return !unicode.IsLetter(r) && r != '_'
			})
			if end < 0 {
				end = len(sql)
			}
			return strings.ToUpper(sql[:end])
		}
	}
}
