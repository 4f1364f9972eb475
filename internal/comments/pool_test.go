package comments

import (
	"context"
	"io"
	"testing"

	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPickReturnsLoadedComment(t *testing.T) {
	entries := []string{"nice post", "love this", "great take"}
	p := NewPool(entries, discardLogger())

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		got, err := p.Pick(context.Background())
		if err != nil {
			t.Fatalf("Pick returned error: %v", err)
		}
		seen[got] = true
	}

	for got := range seen {
		found := false
		for _, e := range entries {
			if got == e {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Pick returned %q, not in pool", got)
		}
	}
}

func TestPickFailsOnEmptyPool(t *testing.T) {
	p := NewPool(nil, discardLogger())
	if _, err := p.Pick(context.Background()); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestReplaceDropsBlankEntries(t *testing.T) {
	p := NewPool([]string{"keep"}, discardLogger())
	p.Replace([]string{"  ", "first", "", "second  "})

	entries := p.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", entries)
	}
	if entries[0] != "first" || entries[1] != "second" {
		t.Fatalf("unexpected entries %v", entries)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}
