// Package search finds terms in extracted page text and marks matching text
// spans. Matching is literal and case-insensitive, with a whitespace-insensitive
// fallback for scripts such as CJK where extraction breaks tokens apart.
package search

const (
	contextRadius   = 50
	contextEllipsis = "..."
)

// Result is one matching page. PageNum is always set; Context and Text are
// empty for results that only carry a navigation target.
type Result struct {
	PageNum int
	Context string
	Text    string
}

// PageSource is the read side of the page text store.
type PageSource interface {
	PageText(page int) string
}

// Search scans pages 1..numPages in ascending order and returns at most one
// result per page, built around the first match on that page.
func Search(term string, pages PageSource, numPages int) []Result {
	m, ok := newMatcher(term)
	if !ok || pages == nil {
		return nil
	}
	var results []Result
	for page := 1; page <= numPages; page++ {
		text := pages.PageText(page)
		if text == "" {
			continue
		}
		runes := []rune(text)
		idx, found := m.locate(runes)
		if !found {
			continue
		}
		results = append(results, Result{
			PageNum: page,
			Context: contextWindow(runes, idx, len(m.needle)),
			Text:    text,
		})
	}
	return results
}

func contextWindow(text []rune, idx, termLen int) string {
	start := idx - contextRadius
	if start < 0 {
		start = 0
	}
	end := idx + termLen + contextRadius
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	return contextEllipsis + string(text[start:end]) + contextEllipsis
}
