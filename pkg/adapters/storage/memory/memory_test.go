package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aescanero/scriptbook/pkg/domain"
	"github.com/aescanero/scriptbook/pkg/ports"
)

var (
	_ ports.ResultStore   = (*InMemoryResultStore)(nil)
	_ ports.NotebookStore = (*InMemoryNotebookStore)(nil)
)

func TestResultStore_Lifecycle(t *testing.T) {
	s := NewInMemoryResultStore()
	ctx := context.Background()

	_ = s.Begin(ctx, "t1")
	if _, pending, err := s.Get(ctx, "t1"); err != nil || !pending {
		t.Fatalf("expected pending, got pending=%v err=%v", pending, err)
	}

	_ = s.Put(ctx, "t1", &domain.ExecutionResult{Stdout: "ok"})
	got, pending, err := s.Get(ctx, "t1")
	if err != nil || pending || got.Stdout != "ok" {
		t.Fatalf("unexpected result %+v pending=%v err=%v", got, pending, err)
	}

	_ = s.Delete(ctx, "t1")
	if err := s.Put(ctx, "t1", &domain.ExecutionResult{}); !errors.Is(err, domain.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound after delete, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestNotebookStore_CopiesDocuments(t *testing.T) {
	s := NewInMemoryNotebookStore()
	ctx := context.Background()

	doc := &domain.Document{Version: "1.0", Cells: []domain.DocumentCell{{Type: "script", Content: "a"}}}
	_ = s.SaveNotebook(ctx, "nb", doc)
	doc.Cells[0].Content = "mutated"

	got, err := s.LoadNotebook(ctx, "nb")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Cells[0].Content != "a" {
		t.Errorf("stored document was mutated: %q", got.Cells[0].Content)
	}

	if _, err := s.LoadNotebook(ctx, "other"); !errors.Is(err, domain.ErrNotebookNotFound) {
		t.Errorf("expected ErrNotebookNotFound, got %v", err)
	}
}
