package repo

import (
	"context"

	"gorm.io/gorm"
)

// QueryResult is the tabular output of an ad-hoc query.
type QueryResult struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

// ReadOnlyQuery runs sqlText on a single pinned connection with
// PRAGMA query_only enabled, so any statement that would write fails inside
// SQLite itself. The pragma is switched back off before the connection
// returns to the pool.
func ReadOnlyQuery(ctx context.Context, db *gorm.DB, sqlText string) (*QueryResult, error) {
	out := &QueryResult{Columns: []string{}, Rows: [][]any{}}
	err := db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("PRAGMA query_only = ON").Error; err != nil {
			return err
		}
		defer conn.WithContext(context.Background()).Exec("PRAGMA query_only = OFF")

		rows, err := conn.Raw(sqlText).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			for i, v := range vals {
				if b, ok := v.([]byte); ok {
					vals[i] = string(b)
				}
			}
			out.Rows = append(out.Rows, vals)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(out.Rows) > 0 {
			out.Columns = cols
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.RowCount = len(out.Rows)
	return out, nil
}
