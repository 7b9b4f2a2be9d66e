package search

import "testing"

type fakeSpan struct {
	text   string
	marked bool
	sets   int
}

func (s *fakeSpan) Text() string          { return s.text }
func (s *fakeSpan) Highlighted() bool     { return s.marked }
func (s *fakeSpan) SetHighlighted(v bool) { s.marked = v; s.sets++ }

func spansOf(texts ...string) []*fakeSpan {
	spans := make([]*fakeSpan, 0, len(texts))
	for _, text := range texts {
		spans = append(spans, &fakeSpan{text: text})
	}
	return spans
}

func TestHighlightMarksMatchingSpans(t *testing.T) {
	t.Parallel()

	spans := spansOf("Quarterly report", "Invoice total: 40", "notes", "INVOICE TOTAL due", "appendix")
	if got := Highlight("invoice total", spans); got != 2 {
		t.Fatalf("Highlight() = %d, want 2", got)
	}
	for idx, span := range spans {
		want := idx == 1 || idx == 3
		if span.marked != want {
			t.Fatalf("span %d marked=%v want %v", idx, span.marked, want)
		}
	}

	if cleared := Clear(spans); cleared != 2 {
		t.Fatalf("Clear() = %d, want 2", cleared)
	}
	for idx, span := range spans {
		if span.marked {
			t.Fatalf("span %d still highlighted after clear", idx)
		}
	}
}

func TestHighlightWhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	spans := spansOf("持続 可能な社会", "その他")
	if got := Highlight("持続可能", spans); got != 1 {
		t.Fatalf("Highlight() = %d, want 1", got)
	}
	if !spans[0].marked || spans[1].marked {
		t.Fatal("fallback should mark only the CJK span")
	}
}

func TestHighlightMarksSpanOnce(t *testing.T) {
	t.Parallel()

	spans := spansOf("alpha beta")
	Highlight("alpha beta", spans)
	if spans[0].sets != 1 {
		t.Fatalf("span should be set once, got %d", spans[0].sets)
	}
}

func TestHighlightBlankTerm(t *testing.T) {
	t.Parallel()

	spans := spansOf("anything")
	if got := Highlight("  ", spans); got != 0 {
		t.Fatalf("blank term should not mark spans, got %d", got)
	}
}

func TestClearWithoutHighlights(t *testing.T) {
	t.Parallel()

	spans := spansOf("a", "b")
	if got := Clear(spans); got != 0 {
		t.Fatalf("Clear() = %d, want 0", got)
	}
	if got := Clear([]*fakeSpan(nil)); got != 0 {
		t.Fatalf("Clear(nil) = %d, want 0", got)
	}
}
