package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-rag-backend/internal/domain"
)

func TestReadOnlyQuery_SelectReturnsRows(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)

	if err := CreatePersona(ctx, db, &domain.Persona{Name: "A", SystemPrompt: "p"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	res, err := ReadOnlyQuery(ctx, db, "SELECT name, system_prompt FROM personas")
	if err != nil {
		t.Fatalf("ReadOnlyQuery: %v", err)
	}
	if res.RowCount != 1 || len(res.Columns) != 2 || res.Columns[0] != "name" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Rows[0][0] != "A" {
		t.Fatalf("expected text values decoded as strings, got %#v", res.Rows[0][0])
	}

	empty, err := ReadOnlyQuery(ctx, db, "SELECT name FROM personas WHERE 1 = 0")
	if err != nil || empty.RowCount != 0 || len(empty.Columns) != 0 {
		t.Fatalf("empty result = %+v, %v", empty, err)
	}
}

func TestReadOnlyQuery_WritesFailAndConnectionIsRestored(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)

	if _, err := ReadOnlyQuery(ctx, db, "DELETE FROM personas"); err == nil {
		t.Fatalf("expected query_only to reject a write")
	}
	if _, err := ReadOnlyQuery(ctx, db, "SELECT * FROM no_such_table"); err == nil {
		t.Fatalf("expected SQL error for unknown table")
	}

	// Regular writes still work afterwards.
	if err := CreatePersona(ctx, db, &domain.Persona{Name: "B", SystemPrompt: "p"}); err != nil {
		t.Fatalf("write after read-only query failed: %v", err)
	}
}
