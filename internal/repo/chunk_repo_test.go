package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-rag-backend/internal/domain"
	"github.com/tbourn/go-rag-backend/internal/search"
)

func mkChunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, s := range texts {
		out[i] = domain.Chunk{ChunkIndex: i, Content: s, TokenCount: 1, Embedding: domain.Vector{float32(i + 1), 1}}
	}
	return out
}

func TestReplaceChunks_FullReplace(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)

	d := &domain.Document{Filename: "a.txt", FileType: "txt"}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	if err := ReplaceChunks(ctx, db, d.ID, mkChunks("one", "two", "three")); err != nil {
		t.Fatalf("ReplaceChunks #1: %v", err)
	}
	first, err := ListChunkIDs(ctx, db, d.ID)
	if err != nil || len(first) != 3 {
		t.Fatalf("ListChunkIDs = %v, %v", first, err)
	}

	if err := ReplaceChunks(ctx, db, d.ID, mkChunks("uno", "dos")); err != nil {
		t.Fatalf("ReplaceChunks #2: %v", err)
	}
	chunks, err := ListChunks(ctx, db, d.ID)
	if err != nil || len(chunks) != 2 {
		t.Fatalf("ListChunks = %d, %v", len(chunks), err)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk_index must be dense, got %d at %d", c.ChunkIndex, i)
		}
		for _, old := range first {
			if c.ID == old {
				t.Fatalf("chunk id %s survived a replace", old)
			}
		}
		if c.Embedding.Dim() != 2 {
			t.Fatalf("embedding not persisted: %v", c.Embedding)
		}
	}
	if chunks[0].Content != "uno" || chunks[1].Content != "dos" {
		t.Fatalf("unexpected contents: %+v", chunks)
	}
}

func TestReplaceChunks_RejectsMixedDimensions(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)
	d := &domain.Document{Filename: "a.txt", FileType: "txt"}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	cs := mkChunks("a", "b")
	cs[1].Embedding = domain.Vector{1, 2, 3}
	if err := ReplaceChunks(ctx, db, d.ID, cs); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestVectorStore_OnlyCompletedDocuments(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)

	done := &domain.Document{Filename: "done.txt", FileType: "txt"}
	busy := &domain.Document{Filename: "busy.txt", FileType: "txt"}
	for _, d := range []*domain.Document{done, busy} {
		if err := CreateDocument(ctx, db, d); err != nil {
			t.Fatalf("CreateDocument: %v", err)
		}
		if err := ReplaceChunks(ctx, db, d.ID, mkChunks("x", "y")); err != nil {
			t.Fatalf("ReplaceChunks: %v", err)
		}
	}
	if err := CompleteDocument(ctx, db, done.ID, 2); err != nil {
		t.Fatalf("CompleteDocument: %v", err)
	}
	if err := SetDocumentStatus(ctx, db, busy.ID, domain.StatusProcessing, nil); err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}

	store := NewVectorStore(db)
	var seen []search.Candidate
	if err := store.EachCandidate(ctx, func(c search.Candidate) error {
		seen = append(seen, c)
		return nil
	}); err != nil {
		t.Fatalf("EachCandidate: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected only the completed document's 2 chunks, got %d", len(seen))
	}
	for _, c := range seen {
		if c.DocumentID != done.ID || c.DocumentName != "done.txt" || len(c.Embedding) != 2 {
			t.Fatalf("unexpected candidate: %+v", c)
		}
	}

	stop := errors.New("stop")
	err := store.EachCandidate(ctx, func(search.Candidate) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("visitor error should propagate, got %v", err)
	}
}

func TestChunks_CascadeOnDocumentDelete(t *testing.T) {
	ctx := context.Background()
	db := newSchemaDB(t)
	d := &domain.Document{Filename: "a.txt", FileType: "txt"}
	if err := CreateDocument(ctx, db, d); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if err := ReplaceChunks(ctx, db, d.ID, mkChunks("a")); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	if err := DeleteDocument(ctx, db, d.ID); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	ids, err := ListChunkIDs(ctx, db, d.ID)
	if err != nil || len(ids) != 0 {
		t.Fatalf("chunks should cascade, got %v %v", ids, err)
	}
}
