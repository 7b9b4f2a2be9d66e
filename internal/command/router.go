// Package command classifies free-text commands and runs them against a
// session.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/search"
	"github.com/csheth/pagelens/internal/session"
)

// ErrBusy is returned when a command arrives while another is running.
var ErrBusy = errors.New("another command is still running")

const (
	scannedPDFWarning = "⚠️ Could not extract text from PDF. This might be an image-based (scanned) PDF."
	emptySearchHint   = `Please specify what you want to search for. Example: "find invoice"`
	noGeneratorReason = "no language model is configured"
)

// Generator produces text for a prompt. llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) (string, error)
}

// Router dispatches commands for one session, one at a time.
type Router struct {
	session *session.Session
	gen     Generator
	guard   *semaphore.Weighted
	logger  *slog.Logger
}

// NewRouter binds a router to s. gen may be nil, in which case commands that
// need a model answer with an error message.
func NewRouter(s *session.Session, gen Generator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{
		session: s,
		gen:     gen,
		guard:   semaphore.NewWeighted(1),
		logger:  logger,
	}
}

// Session returns the session the router acts on.
func (r *Router) Session() *session.Session {
	return r.session
}

// Handle runs cmd. It returns the result to focus, if any. Blank commands do
// nothing and a command sent while another is in flight fails with ErrBusy.
func (r *Router) Handle(ctx context.Context, cmd string) (*search.Result, error) {
	if strings.TrimSpace(cmd) == "" {
		return nil, nil
	}
	if !r.guard.TryAcquire(1) {
		return nil, ErrBusy
	}
	defer r.guard.Release(1)

	s := r.session
	s.SetProcessing(true)
	defer s.SetProcessing(false)
	s.ClearOutput()

	normalized := Normalize(cmd)
	intent := Classify(normalized)
	r.logger.Info("handling command", "intent", intent, "command", normalized)

	var (
		result *search.Result
		err    error
	)
	switch intent {
	case IntentSearch:
		result, err = r.handleSearch(ctx, normalized)
	case IntentNavigate:
		result, err = r.handleNavigate(ctx, normalized)
	case IntentSummarize:
		err = r.handleSummarize(ctx, normalized)
	case IntentExtract:
		err = r.handleExtract(ctx)
	default:
		err = r.handleGeneral(ctx, normalized)
	}
	if err != nil {
		r.logger.Error("command failed", "intent", intent, "err", err)
		s.SetError(err.Error())
		return nil, err
	}
	return result, nil
}

func (r *Router) runSearch(ctx context.Context, term string) ([]search.Result, error) {
	if err := r.session.ExtractAll(ctx); err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	results := search.Search(term, r.session, r.session.NumPages())
	r.session.SetResults(term, results)
	return results, nil
}

func (r *Router) handleSearch(ctx context.Context, cmd string) (*search.Result, error) {
	s := r.session
	term := ExtractSearchTerm(cmd)
	if term == "" {
		s.SetResponse(emptySearchHint)
		return nil, nil
	}

	s.SetResponse(fmt.Sprintf(`Searching for "%s"...`, term))
	results, err := r.runSearch(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		s.SetResponse(fmt.Sprintf(`Found %d occurrences of "%s". Click on a result below to view and highlight it.`, len(results), term))
		first := results[0]
		return &first, nil
	}

	if total := s.Store().TotalCharacters(); total == 0 {
		s.SetResponse(scannedPDFWarning)
	} else {
		s.SetResponse(fmt.Sprintf(`No results found for "%s". Extracted %d characters from PDF.`, term, total))
	}
	return nil, nil
}

func (r *Router) handleNavigate(ctx context.Context, cmd string) (*search.Result, error) {
	s := r.session
	if digits, ok := pageNumber(cmd); ok {
		target, err := strconv.Atoi(digits)
		if err == nil && target >= 1 && target <= s.NumPages() {
			s.SetPage(target)
			s.SetResponse(fmt.Sprintf("Navigated to page %d.", target))
			return &search.Result{PageNum: target}, nil
		}
		if err == nil {
			digits = strconv.Itoa(target)
		}
		s.SetResponse(fmt.Sprintf("Page %s does not exist. PDF has %d pages.", digits, s.NumPages()))
		return nil, nil
	}

	term := ExtractSearchTerm(cmd)
	if term == "" {
		return nil, nil
	}
	results, err := r.runSearch(ctx, term)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		s.SetResponse(fmt.Sprintf(`Could not find "%s" in the document.`, term))
		return nil, nil
	}
	first := results[0]
	s.SetPage(first.PageNum)
	s.SetResponse(fmt.Sprintf(`Navigated to first occurrence of "%s" on page %d.`, term, first.PageNum))
	return &first, nil
}

func (r *Router) handleSummarize(ctx context.Context, cmd string) error {
	s := r.session
	if err := s.ExtractAll(ctx); err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	text := s.CurrentPageText()
	scope := fmt.Sprintf("page %d", s.Page())
	switch {
	case strings.Contains(cmd, "current page"), strings.Contains(cmd, "this page"):
	case strings.Contains(cmd, "all"), strings.Contains(cmd, "entire"), strings.Contains(cmd, "whole"):
		text = s.Store().AllText()
		scope = "entire document"
	}
	if text == "" {
		s.SetResponse("No text found to summarize.")
		return nil
	}

	summary, err := r.generate(ctx, llm.SummaryPrompt(truncateRunes(text, llm.MaxContextChars)))
	if err != nil {
		s.SetResponse("Error: " + err.Error())
		return nil
	}
	s.SetResponse(fmt.Sprintf("Summary of %s:\n\n%s", scope, summary))
	return nil
}

func (r *Router) handleExtract(ctx context.Context) error {
	s := r.session
	if err := s.ExtractAll(ctx); err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	text := s.CurrentPageText()
	if text == "" {
		s.SetResponse("No text found on this page.")
		return nil
	}
	s.SetResponse(fmt.Sprintf("Text from page %d:\n\n%s", s.Page(), text))
	return nil
}

func (r *Router) handleGeneral(ctx context.Context, cmd string) error {
	s := r.session
	if err := s.ExtractAll(ctx); err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	var contextText string
	if s.Store().Len() > 0 {
		current := s.Page()
		var parts []string
		for p := current - 1; p <= current+1; p++ {
			if p >= 1 && p <= s.NumPages() {
				parts = append(parts, s.PageText(p))
			}
		}
		contextText = truncateRunes(strings.Join(parts, "\n\n"), llm.MaxContextChars)
	}

	answer, err := r.generate(ctx, llm.DocumentAnswerPrompt(contextText, cmd))
	if err != nil {
		s.SetResponse("Error: " + err.Error())
		return nil
	}
	s.SetResponse(answer)
	return nil
}

func (r *Router) generate(ctx context.Context, prompt string) (string, error) {
	if r.gen == nil {
		return "", errors.New(noGeneratorReason)
	}
	out, err := r.gen.Generate(ctx, prompt, llm.Options{})
	if err != nil {
		r.logger.Warn("generation failed", "err", err)
		return "", err
	}
	return out, nil
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
