package document

import (
	"strings"
	"unicode"
)

// cjk covers CJK punctuation, hiragana, katakana, and the unified ideograph
// blocks. Text in these scripts carries no inter-word spacing.
var cjk = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3000, Hi: 0x303f, Stride: 1},
		{Lo: 0x3040, Hi: 0x309f, Stride: 1},
		{Lo: 0x30a0, Hi: 0x30ff, Stride: 1},
		{Lo: 0x3400, Hi: 0x4dbf, Stride: 1},
		{Lo: 0x4e00, Hi: 0x9faf, Stride: 1},
	},
}

// HasCJK reports whether s contains at least one CJK rune.
func HasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(cjk, r) {
			return true
		}
	}
	return false
}

// JoinFragments builds a page's plain text. A single space separates two
// fragments only when neither contains CJK and the first does not end a line.
func JoinFragments(fragments []Fragment) string {
	var b strings.Builder
	for idx, fragment := range fragments {
		b.WriteString(fragment.Str)
		if idx+1 >= len(fragments) {
			break
		}
		next := fragments[idx+1]
		if !fragment.HasEOL && !HasCJK(fragment.Str) && !HasCJK(next.Str) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
