package guide

import (
	"fmt"
	"strings"
)

// Step is one entry of the command guide: a heading and examples.
type Step struct {
	Title       string
	Description string
	Examples    []string
}

// Metadata carries just enough context for personalizing guide steps.
type Metadata struct {
	Document string
	Pages    int
	Model    string
}

// Build returns the command guide shown in the help overlay, one step per
// kind of command.
func Build(meta Metadata) []Step {
	doc := strings.TrimSpace(meta.Document)
	if doc == "" {
		doc = "the document"
	}
	pages := "its pages"
	if meta.Pages > 0 {
		pages = fmt.Sprintf("pages 1-%d", meta.Pages)
	}
	model := strings.TrimSpace(meta.Model)
	if model == "" {
		model = "the language model"
	}

	return []Step{
		{
			Title:       "Search",
			Description: fmt.Sprintf("Start with find, search, locate or look for to list every page of %s containing a phrase. Spacing is ignored, so CJK text matches across line breaks.", doc),
			Examples:    []string{"find invoice", `search for "net income"`, "look for all occurrences of budget"},
		},
		{
			Title:       "Navigate",
			Description: fmt.Sprintf("Jump to %s by number, or to the first page mentioning a phrase.", pages),
			Examples:    []string{"go to page 5", "page 12", "go to page with budget"},
		},
		{
			Title:       "Summarize",
			Description: fmt.Sprintf("Ask %s for a 2-3 sentence summary of the current page or the whole document.", model),
			Examples:    []string{"summarize this page", "summarize the entire document"},
		},
		{
			Title:       "Extract",
			Description: "Print the raw text of the current page.",
			Examples:    []string{"extract text", "get text"},
		},
		{
			Title:       "Ask",
			Description: fmt.Sprintf("Anything else is a question for %s, answered from the current and neighbouring pages.", model),
			Examples:    []string{"what is the total amount due?", "who signed this contract?"},
		},
	}
}
