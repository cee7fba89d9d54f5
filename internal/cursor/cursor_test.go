package cursor

import "github.com/tablestream/csvmerge3/internal/row"
import "testing"

func rows(keys ...string) []*row.Row {
	out := make([]*row.Row, len(keys))
	for i, k := range keys {
		out[i] = &row.Row{Line: i + 2, Key: k}
	}
	return out
}

func TestCursorAdvancesInOrder(t *testing.T) {
	c := New(rows("a", "b", "c"))
	k, ok := c.CurrentKey()
	if !ok || k != "a" {
		t.Fatalf("expected a, got %q ok=%v", k, ok)
	}
	c.Consume("a")
	k, ok = c.CurrentKey()
	if !ok || k != "b" {
		t.Fatalf("expected b, got %q ok=%v", k, ok)
	}
}

func TestCursorRelevanceAheadAndAbsent(t *testing.T) {
	c := New(rows("a", "b", "c"))
	if got := c.Relevance("c"); got != 2 {
		t.Fatalf("expected relevance 2, got %d", got)
	}
	if got := c.Relevance("zzz"); got != Infinite {
		t.Fatalf("expected Infinite, got %d", got)
	}
}

func TestCursorDeferAndMatchFromBacklog(t *testing.T) {
	c := New(rows("a", "b", "c"))
	c.Defer() // defers "a", advances to "b"
	if got := c.Relevance("a"); got != 0 {
		t.Fatalf("expected backlog relevance 0, got %d", got)
	}
	r := c.Match("a")
	if r == nil || r.Key != "a" {
		t.Fatal("expected to find deferred row a")
	}
	c.Consume("a")
	if c.Match("a") != nil {
		t.Fatal("expected a to be gone after consume")
	}
}

func TestCursorConsumeAheadDoesNotAdvancePastOthers(t *testing.T) {
	c := New(rows("a", "b", "c"))
	c.Consume("c") // consume a row ahead of the current position
	k, ok := c.CurrentKey()
	if !ok || k != "a" {
		t.Fatalf("expected current still a, got %q ok=%v", k, ok)
	}
	c.Consume("a")
	k, ok = c.CurrentKey()
	if !ok || k != "b" {
		t.Fatalf("expected b after consuming a, got %q ok=%v", k, ok)
	}
	c.Consume("b")
	if !c.Drained() {
		t.Fatal("expected cursor drained after all keys consumed")
	}
}

func TestCursorDrainedRequiresEmptyBacklog(t *testing.T) {
	c := New(rows("a"))
	c.Defer()
	if c.Drained() {
		t.Fatal("cursor with non-empty backlog should not be drained")
	}
	c.Consume("a")
	if !c.Drained() {
		t.Fatal("expected drained once backlog entry consumed")
	}
}
