package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/pagelens/internal/command"
	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/llm"
	"github.com/csheth/pagelens/internal/session"
	"github.com/csheth/pagelens/internal/transcript"
)

func loadDocumentJob(source string, cache *document.Cache) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, loadTimeout)
		defer cancel()
		doc, err := document.Load(ctx, source, cache)
		if err != nil {
			return documentLoadedMsg{source: source, err: err}, err
		}
		return documentLoadedMsg{source: source, doc: doc}, nil
	}
}

func runCommandJob(router *command.Router, cmd, intent string, page int) jobRunner {
	sessionID := router.Session().ID
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, commandTimeout)
		defer cancel()
		result, err := router.Handle(ctx, cmd)
		return commandResultMsg{
			sessionID: sessionID,
			command:   cmd,
			intent:    intent,
			page:      page,
			result:    result,
			err:       err,
		}, err
	}
}

func probeLLMJob(client llm.Client) jobRunner {
	return func(parent context.Context) (tea.Msg, error) {
		ctx, cancel := context.WithTimeout(parent, probeTimeout)
		defer cancel()
		status, err := client.Probe(ctx)
		return llmStatusMsg{status: status, err: err}, err
	}
}

func saveTranscriptJob(path, sessionID, source string, info *transcript.LLMInfo, exchanges []transcript.Exchange) jobRunner {
	toPersist := append([]transcript.Exchange(nil), exchanges...)
	return func(context.Context) (tea.Msg, error) {
		if err := transcript.Append(path, sessionID, source, info, toPersist...); err != nil {
			return transcriptSavedMsg{err: err}, err
		}
		return transcriptSavedMsg{count: len(toPersist)}, nil
	}
}

// renderPageCmd extracts the page text if needed and lays it out in the
// background. A superseded render comes back with ErrRenderCancelled.
func renderPageCmd(ctx context.Context, s *session.Session, seq, page, width int) tea.Cmd {
	return func() tea.Msg {
		text := s.ExtractPage(page)
		if ctx.Err() != nil {
			return pageRenderedMsg{seq: seq, page: page, err: document.ErrRenderCancelled}
		}
		lines, err := document.Render(ctx, page, text, width).Wait()
		return pageRenderedMsg{seq: seq, page: page, lines: lines, err: err}
	}
}

func exchangeFromState(cmd, intent string, page int, state session.State, err error) transcript.Exchange {
	entry := transcript.NewExchange(cmd, intent, page)
	entry.Response = state.Response
	entry.Error = state.Error
	if err != nil && entry.Error == "" {
		entry.Error = err.Error()
	}
	entry.Results = len(state.Results)
	return entry
}

func describeLoadError(err error) string {
	switch {
	case errors.Is(err, document.ErrNotPDF):
		return "Please select a PDF file."
	case err != nil:
		return "Failed to load PDF: " + err.Error()
	default:
		return ""
	}
}
