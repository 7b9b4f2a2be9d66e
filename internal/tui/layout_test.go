package tui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/csheth/pagelens/internal/search"
)

func TestPageLayoutUpdate(t *testing.T) {
	cases := []struct {
		name           string
		width          int
		height         int
		viewportWidth  int
		viewportHeight int
		responseHeight int
	}{
		{name: "narrow", width: 80, height: 24, viewportWidth: 76, viewportHeight: 6, responseHeight: 3},
		{name: "wide", width: 200, height: 40, viewportWidth: 196, viewportHeight: 18, responseHeight: 7},
		{name: "tiny", width: 20, height: 5, viewportWidth: 40, viewportHeight: 4, responseHeight: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layout := newPageLayout()
			layout.Update(tc.width, tc.height)
			if layout.viewportWidth != tc.viewportWidth {
				t.Fatalf("viewport width mismatch: got %d want %d", layout.viewportWidth, tc.viewportWidth)
			}
			if layout.viewportHeight != tc.viewportHeight {
				t.Fatalf("viewport height mismatch: got %d want %d", layout.viewportHeight, tc.viewportHeight)
			}
			if layout.responseHeight != tc.responseHeight {
				t.Fatalf("response height mismatch: got %d want %d", layout.responseHeight, tc.responseHeight)
			}
		})
	}
}

func TestRenderPageLinesReportsFirstHighlight(t *testing.T) {
	lines := toPageLines([]string{"alpha", "beta", "gamma"})
	lines[2].SetHighlighted(true)
	lines[1].SetHighlighted(true)
	content, first := renderPageLines(lines)
	if first != 1 {
		t.Fatalf("expected first highlight at 1, got %d", first)
	}
	if !strings.Contains(content, "alpha") || !strings.Contains(content, "gamma") {
		t.Fatalf("content lost lines: %q", content)
	}
}

func TestRenderPageLinesEmptyPage(t *testing.T) {
	if lines := toPageLines([]string{""}); lines != nil {
		t.Fatalf("blank page should have no lines, got %#v", lines)
	}
	content, first := renderPageLines(nil)
	if first != -1 || !strings.Contains(content, "No text found on this page.") {
		t.Fatalf("unexpected empty rendering %q (%d)", content, first)
	}
}

func TestResultPreviewTruncatesWideText(t *testing.T) {
	result := search.Result{PageNum: 12, Context: "...合計金額は  一万円です。請求書の\n番号をご確認ください..."}
	row := resultPreview(result, true, 24)
	if !strings.HasPrefix(row, "▸ p.12  ") {
		t.Fatalf("unexpected prefix %q", row)
	}
	if w := runewidth.StringWidth(row); w > 24 {
		t.Fatalf("preview wider than 24 cells: %d (%q)", w, row)
	}
	if strings.Contains(row, "\n") {
		t.Fatalf("preview should be a single line: %q", row)
	}
}
