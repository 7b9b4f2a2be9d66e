// Package session holds the state of one open document: the PDF engine, the
// extracted page text, the current page and the output of the last command.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/search"
	"github.com/csheth/pagelens/internal/textstore"
)

const extractingMessage = "Extracting text from PDF..."

// ErrClosed is returned by extraction on a session whose document was closed.
var ErrClosed = errors.New("session closed")

// Session is safe for concurrent use. A new Session is created for every
// loaded document so no state leaks between files.
type Session struct {
	ID   string
	Name string

	doc    document.Engine
	store  *textstore.Store
	logger *slog.Logger

	// extractMu serializes engine access so a page is read at most once even
	// when the renderer and a command race for it. Close takes it too.
	extractMu sync.Mutex
	closed    atomic.Bool

	mu             sync.RWMutex
	page           int
	response       string
	errMsg         string
	processing     bool
	loading        bool
	loadingMessage string
	results        []search.Result
	resultIdx      int
	highlight      string
}

// State is a copy of the observable fields.
type State struct {
	Name           string
	Page           int
	NumPages       int
	Response       string
	Error          string
	Processing     bool
	Loading        bool
	LoadingMessage string
	Results        []search.Result
	ResultIndex    int
	Highlight      string
}

// New wraps doc, which may be nil when no file is open.
func New(doc document.Engine, name string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Session{
		ID:     uuid.New().String(),
		Name:   name,
		doc:    doc,
		store:  textstore.New(),
		logger: logger,
	}
	if s.NumPages() > 0 {
		s.page = 1
	}
	s.logger = logger.With("session", s.ID)
	return s
}

// Document returns the underlying engine or nil.
func (s *Session) Document() document.Engine {
	return s.doc
}

// Store exposes the extracted page text.
func (s *Session) Store() *textstore.Store {
	return s.store
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

func (s *Session) NumPages() int {
	if s.doc == nil {
		return 0
	}
	return s.doc.NumPages()
}

func (s *Session) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// SetPage moves to page n. Values outside 1..NumPages are ignored.
func (s *Session) SetPage(n int) bool {
	if n < 1 || n > s.NumPages() {
		return false
	}
	s.mu.Lock()
	s.page = n
	s.mu.Unlock()
	return true
}

// NextPage advances one page, stopping at the last.
func (s *Session) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page < s.NumPages() {
		s.page++
	}
	return s.page
}

// PrevPage goes back one page, stopping at the first.
func (s *Session) PrevPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page > 1 {
		s.page--
	}
	return s.page
}

// PageText satisfies search.PageSource.
func (s *Session) PageText(page int) string {
	return s.store.PageText(page)
}

// CurrentPageText returns the stored text of the current page.
func (s *Session) CurrentPageText() string {
	return s.store.PageText(s.Page())
}

// ExtractPage pulls the text of one page into the store unless it is already
// there. Engine failures are logged and recorded as an empty page.
func (s *Session) ExtractPage(page int) string {
	s.extractMu.Lock()
	defer s.extractMu.Unlock()
	if s.closed.Load() {
		return ""
	}
	if s.store.Has(page) {
		return s.store.PageText(page)
	}
	if s.doc == nil {
		return ""
	}
	text, err := s.readPage(page)
	if err != nil {
		s.logger.Warn("text extraction failed", "page", page, "err", err)
		text = ""
	}
	s.store.SetPageText(page, text)
	return text
}

func (s *Session) readPage(page int) (string, error) {
	p, err := s.doc.Page(page)
	if err != nil {
		return "", err
	}
	fragments, err := p.TextContent()
	if err != nil {
		return "", fmt.Errorf("page %d text content: %w", page, err)
	}
	return document.JoinFragments(fragments), nil
}

// ExtractAll walks every page in order and extracts the ones not yet stored.
// It only stops early when ctx is cancelled.
func (s *Session) ExtractAll(ctx context.Context) error {
	if s.doc == nil {
		return nil
	}
	total := s.NumPages()
	pending := total - s.store.Len()
	if pending <= 0 {
		return nil
	}
	s.SetLoading(true, extractingMessage)
	defer s.SetLoading(false, "")

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Closed() {
			return ErrClosed
		}
		s.ExtractPage(page)
	}
	s.logger.Debug("extracted document text", "pages", total, "characters", s.store.TotalCharacters())
	return nil
}

func (s *Session) SetResponse(msg string) {
	s.mu.Lock()
	s.response = msg
	s.mu.Unlock()
}

func (s *Session) Response() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.response
}

// SetError records a document-level error message.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Session) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *Session) SetProcessing(v bool) {
	s.mu.Lock()
	s.processing = v
	s.mu.Unlock()
}

func (s *Session) Processing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing
}

// SetLoading sets the loading flag and its message together.
func (s *Session) SetLoading(loading bool, message string) {
	s.mu.Lock()
	s.loading = loading
	s.loadingMessage = message
	s.mu.Unlock()
}

func (s *Session) Loading() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading, s.loadingMessage
}

// SetResults replaces the search results and the term to highlight.
func (s *Session) SetResults(term string, results []search.Result) {
	s.mu.Lock()
	s.results = append([]search.Result(nil), results...)
	s.resultIdx = 0
	s.highlight = term
	s.mu.Unlock()
}

func (s *Session) Results() []search.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]search.Result(nil), s.results...)
}

// SetHighlight sets the term the page view should highlight.
func (s *Session) SetHighlight(term string) {
	s.mu.Lock()
	s.highlight = term
	s.mu.Unlock()
}

func (s *Session) Highlight() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlight
}

// ShowResult selects r among the current results and moves to its page, so
// that the next cycle continues from it.
func (s *Session) ShowResult(r search.Result) bool {
	s.mu.Lock()
	found := false
	for i, candidate := range s.results {
		if candidate.PageNum == r.PageNum {
			s.resultIdx = i
			found = true
			break
		}
	}
	s.mu.Unlock()
	return s.SetPage(r.PageNum) || found
}

// NextResult cycles forward through the results and moves to the page of the
// selected one.
func (s *Session) NextResult() (search.Result, bool) {
	return s.stepResult(1)
}

// PrevResult cycles backward through the results.
func (s *Session) PrevResult() (search.Result, bool) {
	return s.stepResult(-1)
}

func (s *Session) stepResult(delta int) (search.Result, bool) {
	s.mu.Lock()
	if len(s.results) == 0 {
		s.mu.Unlock()
		return search.Result{}, false
	}
	n := len(s.results)
	s.resultIdx = ((s.resultIdx+delta)%n + n) % n
	result := s.results[s.resultIdx]
	s.mu.Unlock()
	s.SetPage(result.PageNum)
	return result, true
}

// ClearOutput resets the response, error, results and highlight before a new
// command runs.
func (s *Session) ClearOutput() {
	s.mu.Lock()
	s.response = ""
	s.errMsg = ""
	s.results = nil
	s.resultIdx = 0
	s.highlight = ""
	s.mu.Unlock()
}

// Snapshot copies the observable state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Name:           s.Name,
		Page:           s.page,
		NumPages:       s.NumPages(),
		Response:       s.response,
		Error:          s.errMsg,
		Processing:     s.processing,
		Loading:        s.loading,
		LoadingMessage: s.loadingMessage,
		Results:        append([]search.Result(nil), s.results...),
		ResultIndex:    s.resultIdx,
		Highlight:      s.highlight,
	}
}

// Close waits for any page read in flight, then releases the document and
// wipes the extracted text. Later extraction calls do nothing.
func (s *Session) Close() error {
	s.extractMu.Lock()
	defer s.extractMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	s.store.Reset()
	if s.doc == nil {
		return nil
	}
	return s.doc.Close()
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}
