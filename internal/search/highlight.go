package search

// Span is a rendered text fragment that can carry a highlighted state.
type Span interface {
	Text() string
	Highlighted() bool
	SetHighlighted(bool)
}

// Highlight marks every span whose text contains term and returns how many
// spans were marked. A blank term marks nothing.
func Highlight[S Span](term string, spans []S) int {
	m, ok := newMatcher(term)
	if !ok {
		return 0
	}
	marked := 0
	for _, span := range spans {
		if m.matches(span.Text()) {
			span.SetHighlighted(true)
			marked++
		}
	}
	return marked
}

// Clear removes the highlighted state from every span that has it.
func Clear[S Span](spans []S) int {
	cleared := 0
	for _, span := range spans {
		if span.Highlighted() {
			span.SetHighlighted(false)
			cleared++
		}
	}
	return cleared
}
