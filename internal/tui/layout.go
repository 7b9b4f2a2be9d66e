package tui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/pagelens/internal/search"
)

type pageLayout struct {
	windowWidth    int
	windowHeight   int
	viewportWidth  int
	viewportHeight int
	responseHeight int
}

func newPageLayout() pageLayout {
	return pageLayout{
		viewportWidth:  80,
		viewportHeight: 20,
		responseHeight: 6,
	}
}

// Update splits the window between the page view and the response panel. The
// remaining rows hold the header, results, input and status bar.
func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	innerWidth := width - viewportHorizontalPadding
	if innerWidth < minViewportWidth {
		innerWidth = minViewportWidth
	}
	l.viewportWidth = innerWidth
	const chrome = 10
	usable := height - chrome
	if usable < 12 {
		usable = 12
	}
	l.responseHeight = usable / 4
	if l.responseHeight < 3 {
		l.responseHeight = 3
	}
	l.viewportHeight = usable - l.responseHeight - 5
	if l.viewportHeight < 4 {
		l.viewportHeight = 4
	}
}

// renderPageLines turns the page view lines into viewport content, styling
// highlighted ones. It returns the index of the first highlighted line or -1.
func renderPageLines(lines []*pageLine) (string, int) {
	if len(lines) == 0 {
		return helperStyle.Render("No text found on this page."), -1
	}
	first := -1
	out := make([]string, len(lines))
	for idx, line := range lines {
		if line.highlighted {
			if first < 0 {
				first = idx
			}
			out[idx] = searchHighlightStyle.Render(line.text)
			continue
		}
		out[idx] = line.text
	}
	return strings.Join(out, "\n"), first
}

func toPageLines(lines []string) []*pageLine {
	if len(lines) == 1 && strings.TrimSpace(lines[0]) == "" {
		return nil
	}
	out := make([]*pageLine, len(lines))
	for i, text := range lines {
		out[i] = &pageLine{text: text}
	}
	return out
}

// resultPreview is one row of the results list, cut to width display cells.
func resultPreview(result search.Result, current bool, width int) string {
	marker := "  "
	if current {
		marker = "▸ "
	}
	label := fmt.Sprintf("%sp.%d  ", marker, result.PageNum)
	snippet := strings.Join(strings.Fields(result.Context), " ")
	avail := width - runewidth.StringWidth(label)
	if avail < 10 {
		avail = 10
	}
	return label + runewidth.Truncate(snippet, avail, "…")
}

func (m *model) resultsView() string {
	if m.session == nil {
		return ""
	}
	state := m.session.Snapshot()
	if len(state.Results) == 0 {
		return ""
	}
	rows := []string{sectionHeaderStyle.Render(fmt.Sprintf("Results %d/%d", state.ResultIndex+1, len(state.Results)))}
	start := 0
	if state.ResultIndex >= resultPreviewLimit {
		start = state.ResultIndex - resultPreviewLimit + 1
	}
	end := start + resultPreviewLimit
	if end > len(state.Results) {
		end = len(state.Results)
	}
	for idx := start; idx < end; idx++ {
		row := resultPreview(state.Results[idx], idx == state.ResultIndex, m.layout.viewportWidth)
		if idx == state.ResultIndex {
			row = currentLineStyle.Render(row)
		} else {
			row = helperStyle.Render(row)
		}
		rows = append(rows, row)
	}
	if len(state.Results) > end {
		rows = append(rows, helperStyle.Render(fmt.Sprintf("  … %d more (n/N to cycle)", len(state.Results)-end)))
	}
	return strings.Join(rows, "\n")
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	if padding < 0 {
		padding = 0
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func (m *model) responseContent(state sessionOutput) string {
	wrap := m.wrapWidth(2)
	var parts []string
	if state.err != "" {
		parts = append(parts, errorStyle.Render(wordwrap.String(state.err, wrap)))
	}
	if state.response != "" {
		parts = append(parts, wordwrap.String(state.response, wrap))
	}
	if len(parts) == 0 {
		return helperStyle.Render("Command output will appear here.")
	}
	return strings.Join(parts, "\n\n")
}

type sessionOutput struct {
	response string
	err      string
}
