package search

import (
	"strings"
	"unicode"
)

// matcher implements the two-step policy shared by the engine and the
// highlighter: a case-insensitive substring match, then the same match with
// every whitespace rune removed from both sides. Lower-casing is done per rune
// so rune offsets in the folded text line up with the original text.
type matcher struct {
	needle  []rune
	compact []rune
}

func newMatcher(term string) (matcher, bool) {
	term = strings.TrimSpace(term)
	if term == "" {
		return matcher{}, false
	}
	needle := foldRunes([]rune(term))
	return matcher{needle: needle, compact: stripSpace(needle)}, true
}

// locate returns the rune offset of the first match in text. The offset always
// refers to the original, unstripped text.
func (m matcher) locate(text []rune) (int, bool) {
	folded := foldRunes(text)
	if idx := indexRunes(folded, m.needle); idx >= 0 {
		return idx, true
	}
	compactText := stripSpace(folded)
	idx := indexRunes(compactText, m.compact)
	if idx < 0 {
		return 0, false
	}
	return originalOffset(text, idx), true
}

// matches reports whether text contains the term under either policy. The
// direct check short-circuits the whitespace-insensitive one.
func (m matcher) matches(text string) bool {
	folded := foldRunes([]rune(text))
	if indexRunes(folded, m.needle) >= 0 {
		return true
	}
	return indexRunes(stripSpace(folded), m.compact) >= 0
}

// originalOffset maps an index into the whitespace-stripped text back to the
// rune that starts the match in the original text.
func originalOffset(text []rune, compactIdx int) int {
	seen := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		if seen == compactIdx {
			return i
		}
		seen++
	}
	return len(text)
}

func foldRunes(text []rune) []rune {
	folded := make([]rune, len(text))
	for i, r := range text {
		folded[i] = unicode.ToLower(r)
	}
	return folded
}

func stripSpace(text []rune) []rune {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if !unicode.IsSpace(r) {
			out = append(out, r)
		}
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
	last := len(haystack) - len(needle)
outer:
	for i := 0; i <= last; i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
