package command

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/session"
)

type textPage string

func (p textPage) TextContent() ([]document.Fragment, error) {
	if p == "" {
		return nil, nil
	}
	return []document.Fragment{{Str: string(p)}}, nil
}

type fakeEngine []textPage

func (e fakeEngine) NumPages() int { return len(e) }

func (e fakeEngine) Page(num int) (document.Page, error) {
	if num < 1 || num > len(e) {
		return nil, document.ErrPageOutOfRange
	}
	return e[num-1], nil
}

func (e fakeEngine) Close() error { return nil }

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

func newRouter(gen Generator, pages ...textPage) *Router {
	return NewRouter(session.New(fakeEngine(pages), "test.pdf", nil), gen, nil)
}

func TestHandleSearchFindsResults(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "Invoice total 42", "nothing here", "another INVOICE")
	result, err := r.Handle(context.Background(), "Find invoice")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result == nil || result.PageNum != 1 {
		t.Fatalf("expected first result on page 1, got %+v", result)
	}
	s := r.Session()
	want := `Found 2 occurrences of "invoice". Click on a result below to view and highlight it.`
	if s.Response() != want {
		t.Fatalf("response = %q", s.Response())
	}
	if got := s.Results(); len(got) != 2 || got[1].PageNum != 3 {
		t.Fatalf("results = %+v", got)
	}
	if s.Highlight() != "invoice" {
		t.Fatalf("highlight = %q", s.Highlight())
	}
	if s.Processing() {
		t.Fatal("processing should be released")
	}
}

func TestHandleSearchWithoutMatches(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "abc", "de")
	if _, err := r.Handle(context.Background(), "search zzz"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := `No results found for "zzz". Extracted 5 characters from PDF.`
	if got := r.Session().Response(); got != want {
		t.Fatalf("response = %q, want %q", got, want)
	}
}

func TestHandleSearchOnScannedPDF(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "", "")
	if _, err := r.Handle(context.Background(), "find invoice"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != scannedPDFWarning {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleSearchEmptyTerm(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "text")
	result, err := r.Handle(context.Background(), `find ""`)
	if err != nil || result != nil {
		t.Fatalf("Handle() = %+v, %v", result, err)
	}
	if got := r.Session().Response(); got != `Please specify what you want to search for. Example: "find invoice"` {
		t.Fatalf("response = %q", got)
	}
	if r.Session().Store().Len() != 0 {
		t.Fatal("an empty term should not trigger extraction")
	}
}

func TestHandleNavigateToPage(t *testing.T) {
	t.Parallel()

	pages := make([]textPage, 10)
	r := newRouter(nil, pages...)
	result, err := r.Handle(context.Background(), "go to page 5")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result == nil || result.PageNum != 5 || r.Session().Page() != 5 {
		t.Fatalf("result=%+v page=%d", result, r.Session().Page())
	}
	if got := r.Session().Response(); got != "Navigated to page 5." {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleNavigateRejectsMissingPage(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "a", "b", "c")
	result, err := r.Handle(context.Background(), "page 5")
	if err != nil || result != nil {
		t.Fatalf("Handle() = %+v, %v", result, err)
	}
	if got := r.Session().Response(); got != "Page 5 does not exist. PDF has 3 pages." {
		t.Fatalf("response = %q", got)
	}
	if r.Session().Page() != 1 {
		t.Fatalf("page should stay at 1, got %d", r.Session().Page())
	}

	if _, err := r.Handle(context.Background(), "page 0"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "Page 0 does not exist. PDF has 3 pages." {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleNavigateByTerm(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "intro", "overview", "the budget for 2024")
	result, err := r.Handle(context.Background(), "go to page with budget")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if result == nil || result.PageNum != 3 || r.Session().Page() != 3 {
		t.Fatalf("result=%+v page=%d", result, r.Session().Page())
	}
	if got := r.Session().Response(); got != `Navigated to first occurrence of "budget" on page 3.` {
		t.Fatalf("response = %q", got)
	}

	if _, err := r.Handle(context.Background(), "go to the appendix"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != `Could not find "go to the appendix" in the document.` {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleSummarizeScopes(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "Short."}
	r := newRouter(gen, "first page text", "second page text")

	if _, err := r.Handle(context.Background(), "summarize this page"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "Summary of page 1:\n\nShort." {
		t.Fatalf("response = %q", got)
	}
	if want := llm.SummaryPrompt("first page text"); gen.lastPrompt() != want {
		t.Fatalf("prompt = %q", gen.lastPrompt())
	}

	if _, err := r.Handle(context.Background(), "Summarize the entire document"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "Summary of entire document:\n\nShort." {
		t.Fatalf("response = %q", got)
	}
	if !strings.Contains(gen.lastPrompt(), "first page text\n\nsecond page text") {
		t.Fatalf("prompt should hold all text: %q", gen.lastPrompt())
	}
}

func TestHandleSummarizeTruncatesText(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "ok"}
	r := newRouter(gen, textPage(strings.Repeat("語", 5000)))
	if _, err := r.Handle(context.Background(), "summary"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if want := llm.SummaryPrompt(strings.Repeat("語", llm.MaxContextChars)); gen.lastPrompt() != want {
		t.Fatalf("prompt was not truncated to %d runes", llm.MaxContextChars)
	}
}

func TestHandleSummarizeWithoutText(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "unused"}
	r := newRouter(gen, "")
	if _, err := r.Handle(context.Background(), "summarize"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "No text found to summarize." {
		t.Fatalf("response = %q", got)
	}
	if len(gen.prompts) != 0 {
		t.Fatal("generator should not be called")
	}
}

func TestHandleGenerationFailure(t *testing.T) {
	t.Parallel()

	r := newRouter(&fakeGenerator{err: errors.New("connection refused")}, "text")
	if _, err := r.Handle(context.Background(), "summarize"); err != nil {
		t.Fatalf("generation failures should not surface as errors: %v", err)
	}
	if got := r.Session().Response(); got != "Error: connection refused" {
		t.Fatalf("response = %q", got)
	}

	noModel := newRouter(nil, "text")
	if _, err := noModel.Handle(context.Background(), "what is this?"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := noModel.Session().Response(); got != "Error: "+noGeneratorReason {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleExtract(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "Page one body", "")
	if _, err := r.Handle(context.Background(), "extract text"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "Text from page 1:\n\nPage one body" {
		t.Fatalf("response = %q", got)
	}

	r.Session().SetPage(2)
	if _, err := r.Handle(context.Background(), "get text"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "No text found on this page." {
		t.Fatalf("response = %q", got)
	}
}

func TestHandleGeneralUsesNeighbouringPages(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{reply: "It is a report."}
	r := newRouter(gen, "one", "two", "three", "four")
	r.Session().SetPage(2)

	if _, err := r.Handle(context.Background(), "What Is This?"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := r.Session().Response(); got != "It is a report." {
		t.Fatalf("response = %q", got)
	}
	if want := llm.DocumentAnswerPrompt("one\n\ntwo\n\nthree", "what is this?"); gen.lastPrompt() != want {
		t.Fatalf("prompt = %q\nwant %q", gen.lastPrompt(), want)
	}
}

func TestHandleBlankCommand(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "text")
	r.Session().SetResponse("previous")
	result, err := r.Handle(context.Background(), "   ")
	if err != nil || result != nil {
		t.Fatalf("Handle() = %+v, %v", result, err)
	}
	if r.Session().Response() != "previous" {
		t.Fatal("a blank command should not touch the session")
	}
}

func TestHandleClearsPreviousOutput(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "alpha beta")
	if _, err := r.Handle(context.Background(), "find alpha"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	r.Session().SetError("stale")
	if _, err := r.Handle(context.Background(), "page 1"); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	state := r.Session().Snapshot()
	if state.Error != "" || len(state.Results) != 0 || state.Highlight != "" {
		t.Fatalf("stale output survived: %+v", state)
	}
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string, _ llm.Options) (string, error) {
	close(g.started)
	select {
	case <-g.release:
		return "done", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestHandleRejectsConcurrentCommands(t *testing.T) {
	t.Parallel()

	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	r := newRouter(gen, "text")

	done := make(chan error, 1)
	go func() {
		_, err := r.Handle(context.Background(), "what is this?")
		done <- err
	}()

	select {
	case <-gen.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first command never reached the generator")
	}
	if !r.Session().Processing() {
		t.Fatal("session should be processing")
	}
	if _, err := r.Handle(context.Background(), "find text"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first command failed: %v", err)
	}
	if r.Session().Response() != "done" {
		t.Fatalf("response = %q", r.Session().Response())
	}
	if _, err := r.Handle(context.Background(), "page 1"); err != nil {
		t.Fatalf("guard should be released, got %v", err)
	}
}

func TestHandleRecordsHandlerErrors(t *testing.T) {
	t.Parallel()

	r := newRouter(nil, "a", "b")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Handle(ctx, "extract"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if r.Session().Error() == "" {
		t.Fatal("handler failure should be recorded on the session")
	}
	if r.Session().Processing() {
		t.Fatal("processing should be released after a failure")
	}
}
