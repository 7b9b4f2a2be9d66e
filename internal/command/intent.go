package command

import (
	"regexp"
	"strings"
)

// Intent is the kind of action a command asks for.
type Intent int

const (
	IntentSearch Intent = iota
	IntentNavigate
	IntentSummarize
	IntentExtract
	IntentGeneral
)

func (i Intent) String() string {
	switch i {
	case IntentSearch:
		return "search"
	case IntentNavigate:
		return "navigate"
	case IntentSummarize:
		return "summarize"
	case IntentExtract:
		return "extract"
	default:
		return "general"
	}
}

var (
	searchPrefixRe = regexp.MustCompile(`^(find|search|locate|look for)`)
	pageNumberRe   = regexp.MustCompile(`page\s+(\d+)`)

	leadingVerbRe     = regexp.MustCompile(`(?i)^(find|search|look for|locate)\s+`)
	occurrencesRe     = regexp.MustCompile(`(?i)^(all occurrences of|occurrences of)\s+`)
	containingRe      = regexp.MustCompile(`(?i)^(text containing|containing)\s+`)
	navigatePhraseRe  = regexp.MustCompile(`(?i)^(go to page with|navigate to(\s+page\s+with)?)\s+`)
	surroundingQuotes = regexp.MustCompile(`^["']|["']$`)
)

type rule struct {
	intent Intent
	match  func(cmd string) bool
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{IntentSearch, func(cmd string) bool { return searchPrefixRe.MatchString(cmd) }},
	{IntentNavigate, func(cmd string) bool {
		return strings.Contains(cmd, "go to") || pageNumberRe.MatchString(cmd)
	}},
	{IntentSummarize, containsAny("summarize", "summary")},
	{IntentExtract, containsAny("extract", "get text")},
}

func containsAny(words ...string) func(string) bool {
	return func(cmd string) bool {
		for _, w := range words {
			if strings.Contains(cmd, w) {
				return true
			}
		}
		return false
	}
}

// Normalize lower-cases and trims a raw command.
func Normalize(cmd string) string {
	return strings.ToLower(strings.TrimSpace(cmd))
}

// Classify maps a command to its intent.
func Classify(cmd string) Intent {
	cmd = Normalize(cmd)
	for _, r := range rules {
		if r.match(cmd) {
			return r.intent
		}
	}
	return IntentGeneral
}

// ExtractSearchTerm removes command phrasing around the term: a leading verb,
// then "occurrences of", then "containing", then a navigation phrase, and
// finally one leading and one trailing quote.
func ExtractSearchTerm(cmd string) string {
	term := leadingVerbRe.ReplaceAllString(cmd, "")
	term = occurrencesRe.ReplaceAllString(term, "")
	term = containingRe.ReplaceAllString(term, "")
	term = navigatePhraseRe.ReplaceAllString(term, "")
	term = strings.TrimSpace(term)
	return surroundingQuotes.ReplaceAllString(term, "")
}

// pageNumber returns the digits following "page" in cmd.
func pageNumber(cmd string) (string, bool) {
	m := pageNumberRe.FindStringSubmatch(cmd)
	if m == nil {
		return "", false
	}
	return m[1], true
}
