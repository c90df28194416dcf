package store

import (
	"context"
	"errors"
	"testing"

	"github.com/pioj/pioj/internal/query"
)

func TestPageCRUD(t *testing.T) {
	s, _ := newTestStore(t, "page-1", "page-2")
	ctx := context.Background()

	p1, err := s.CreatePage(ctx, "Sprint board")
	if err != nil {
		t.Fatalf("CreatePage() failed: %v", err)
	}
	if p1.ID != "page-1" {
		t.Errorf("ID = %q, want page-1", p1.ID)
	}
	if p1.Position != 0 {
		t.Errorf("Position = %d, want 0", p1.Position)
	}

	p2, err := s.CreatePage(ctx, "Backlog")
	if err != nil {
		t.Fatalf("CreatePage() failed: %v", err)
	}
	if p2.Position != 1 {
		t.Errorf("second page Position = %d, want 1", p2.Position)
	}

	pages, err := s.ListPages(ctx)
	if err != nil {
		t.Fatalf("ListPages() failed: %v", err)
	}
	if len(pages) != 2 || pages[0].ID != "page-1" || pages[1].ID != "page-2" {
		t.Errorf("ListPages() order wrong: %+v", pages)
	}

	if err := s.RenamePage(ctx, "page-1", "Active sprint"); err != nil {
		t.Fatalf("RenamePage() failed: %v", err)
	}
	p1, err = s.GetPage(ctx, "page-1")
	if err != nil {
		t.Fatalf("GetPage() failed: %v", err)
	}
	if p1.Title != "Active sprint" {
		t.Errorf("Title = %q after rename", p1.Title)
	}

	if err := s.DeletePage(ctx, "page-2"); err != nil {
		t.Fatalf("DeletePage() failed: %v", err)
	}
	_, err = s.GetPage(ctx, "page-2")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage() after delete = %v, want ErrNotFound", err)
	}
}

func TestPageNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetPage(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPage() = %v, want ErrNotFound", err)
	}
	if err := s.RenamePage(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RenamePage() = %v, want ErrNotFound", err)
	}
	if err := s.DeletePage(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeletePage() = %v, want ErrNotFound", err)
	}
}

func TestWorkstreamCRUD(t *testing.T) {
	s, _ := newTestStore(t, "page-1", "ws-1")
	ctx := context.Background()

	if _, err := s.CreatePage(ctx, "Board"); err != nil {
		t.Fatalf("CreatePage() failed: %v", err)
	}

	stack := []query.Definition{
		{Name: "mine", Kind: query.KindJQL, Expression: `assignee = currentUser()`},
		{Kind: query.KindForEach, Expression: `FOREACH {mine}: parent = {issue}`},
	}
	w, err := s.CreateWorkstream(ctx, "page-1", "My issues", stack)
	if err != nil {
		t.Fatalf("CreateWorkstream() failed: %v", err)
	}
	if w.ID != "ws-1" || w.PageID != "page-1" {
		t.Errorf("workstream identity wrong: %+v", w)
	}
	if len(w.Stack) != 2 {
		t.Fatalf("Stack length = %d, want 2", len(w.Stack))
	}
	if w.Stack[0].Name != "mine" || w.Stack[0].Kind != query.KindJQL {
		t.Errorf("Stack[0] round-trip wrong: %+v", w.Stack[0])
	}
	if w.Stack[1].Kind != query.KindForEach {
		t.Errorf("Stack[1].Kind = %v, want KindForEach", w.Stack[1].Kind)
	}

	// Replace the stack; positions must stay dense.
	newStack := []query.Definition{
		{Kind: query.KindJQL, Expression: `project = OPS`},
	}
	if err := s.UpdateWorkstream(ctx, "ws-1", "Ops work", newStack); err != nil {
		t.Fatalf("UpdateWorkstream() failed: %v", err)
	}
	w, err = s.GetWorkstream(ctx, "ws-1")
	if err != nil {
		t.Fatalf("GetWorkstream() failed: %v", err)
	}
	if w.Name != "Ops work" {
		t.Errorf("Name = %q after update", w.Name)
	}
	if len(w.Stack) != 1 || w.Stack[0].Expression != `project = OPS` {
		t.Errorf("Stack after update wrong: %+v", w.Stack)
	}

	if err := s.DeleteWorkstream(ctx, "ws-1"); err != nil {
		t.Fatalf("DeleteWorkstream() failed: %v", err)
	}
	if _, err := s.GetWorkstream(ctx, "ws-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetWorkstream() after delete = %v, want ErrNotFound", err)
	}
}

func TestDeletePageCascades(t *testing.T) {
	s, _ := newTestStore(t, "page-1", "ws-1")
	ctx := context.Background()

	if _, err := s.CreatePage(ctx, "Board"); err != nil {
		t.Fatalf("CreatePage() failed: %v", err)
	}
	stack := []query.Definition{{Kind: query.KindJQL, Expression: `project = OPS`}}
	if _, err := s.CreateWorkstream(ctx, "page-1", "Ops", stack); err != nil {
		t.Fatalf("CreateWorkstream() failed: %v", err)
	}
	if err := s.SaveSnapshot(ctx, "ws-1", "hash-1", query.Outcome{}); err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}

	if err := s.DeletePage(ctx, "page-1"); err != nil {
		t.Fatalf("DeletePage() failed: %v", err)
	}

	for _, q := range []string{
		"SELECT COUNT(*) FROM workstreams",
		"SELECT COUNT(*) FROM queries",
		"SELECT COUNT(*) FROM workstream_results",
	} {
		var count int
		if err := s.db.QueryRow(q).Scan(&count); err != nil {
			t.Fatalf("%s failed: %v", q, err)
		}
		if count != 0 {
			t.Errorf("%s = %d after cascade, want 0", q, count)
		}
	}
}

func TestCreateWorkstream_MissingPage(t *testing.T) {
	s, _ := newTestStore(t, "ws-1")
	ctx := context.Background()

	_, err := s.CreateWorkstream(ctx, "no-such-page", "Orphan", nil)
	if err == nil {
		t.Fatal("CreateWorkstream() with missing page succeeded, want foreign key error")
	}
}

func TestAllWorkstreams_OrderedByPageThenPosition(t *testing.T) {
	s, _ := newTestStore(t, "page-1", "page-2", "ws-a", "ws-b", "ws-c")
	ctx := context.Background()

	if _, err := s.CreatePage(ctx, "First"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreatePage(ctx, "Second"); err != nil {
		t.Fatal(err)
	}
	stack := []query.Definition{{Kind: query.KindJQL, Expression: `project = OPS`}}
	if _, err := s.CreateWorkstream(ctx, "page-2", "C", stack); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWorkstream(ctx, "page-1", "A", stack); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateWorkstream(ctx, "page-1", "B", stack); err != nil {
		t.Fatal(err)
	}

	all, err := s.AllWorkstreams(ctx)
	if err != nil {
		t.Fatalf("AllWorkstreams() failed: %v", err)
	}
	var names []string
	for _, w := range all {
		names = append(names, w.Name)
	}
	want := []string{"A", "B", "C"}
	if len(names) != len(want) {
		t.Fatalf("got %d workstreams, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
