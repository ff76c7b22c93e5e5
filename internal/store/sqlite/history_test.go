package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/parrot/internal/store"
)

func openTemp(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHistoryStore_RecordAndCheck(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	ok, err := s.WasPublished(ctx, "jack", "hello world")
	if err != nil || ok {
		t.Fatalf("WasPublished before record = %v, %v", ok, err)
	}

	if err := s.RecordPublished(ctx, store.PublishedPost{Account: "jack", Text: "hello world", Target: "x", ExternalID: "1"}); err != nil {
		t.Fatalf("RecordPublished: %v", err)
	}

	// match ignores case and surrounding whitespace
	ok, err = s.WasPublished(ctx, "jack", "  Hello World ")
	if err != nil || !ok {
		t.Fatalf("WasPublished after record = %v, %v", ok, err)
	}
	ok, _ = s.WasPublished(ctx, "other", "hello world")
	if ok {
		t.Error("history must be scoped per account")
	}
}

func TestHistoryStore_DuplicateIsNoop(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := s.RecordPublished(ctx, store.PublishedPost{Account: "jack", Text: "same"}); err != nil {
			t.Fatalf("RecordPublished #%d: %v", i, err)
		}
	}
	posts, err := s.ListPublished(ctx, "jack", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Errorf("posts = %d, want 1", len(posts))
	}
}

func TestHistoryStore_ListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		err := s.RecordPublished(ctx, store.PublishedPost{
			Account:     "jack",
			Text:        text,
			PublishedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	posts, err := s.ListPublished(ctx, "jack", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 || posts[0].Text != "third" || posts[1].Text != "second" {
		t.Fatalf("posts = %+v", posts)
	}
	if !posts[0].PublishedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("publishedAt = %v", posts[0].PublishedAt)
	}
}

func TestTextHash(t *testing.T) {
	if store.TextHash("Hi ") != store.TextHash("hi") {
		t.Error("hash should ignore case and surrounding space")
	}
	if store.TextHash("a") == store.TextHash("b") {
		t.Error("different texts should hash differently")
	}
}
