package tui

import (
	"time"

	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/search"
)

type stage int

const (
	stageOpen stage = iota
	stageLoading
	stageDisplay
)

type focusArea int

const (
	focusCommand focusArea = iota
	focusPage
)

const heroTagline = "pagelens · read, search and question PDFs from the terminal"

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
	resultPreviewLimit        = 5
	commandTimeout            = 5 * time.Minute
	loadTimeout               = 2 * time.Minute
	probeTimeout              = 30 * time.Second
)

const (
	commandPlaceholder = `Type a command, e.g. "find invoice" or "summarize this page"`
	openPlaceholder    = "Path or URL of a PDF…"
)

// pageLine is one wrapped line of the page view. It is the span type the
// highlighter marks.
type pageLine struct {
	text        string
	highlighted bool
}

func (l *pageLine) Text() string              { return l.text }
func (l *pageLine) Highlighted() bool         { return l.highlighted }
func (l *pageLine) SetHighlighted(value bool) { l.highlighted = value }

type documentLoadedMsg struct {
	source string
	doc    document.Engine
	err    error
}

type pageRenderedMsg struct {
	seq   int
	page  int
	lines []string
	err   error
}

type commandResultMsg struct {
	sessionID string
	command   string
	intent    string
	page      int
	result    *search.Result
	err       error
}

type llmStatusMsg struct {
	status llm.Status
	err    error
}

type transcriptSavedMsg struct {
	count int
	err   error
}
