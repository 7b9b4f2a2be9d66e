package document

import (
	"context"
	"errors"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// ErrRenderCancelled reports that a render was superseded. It is not a
// rendering failure.
var ErrRenderCancelled = errors.New("rendering was cancelled")

// RenderTask lays out one page of text for a terminal of a given width in the
// background. Starting a new render for the same view should cancel the stale
// one.
type RenderTask struct {
	Page   int
	cancel context.CancelFunc
	done   chan struct{}
	lines  []string
	err    error
}

// Render starts laying out text at the given width.
func Render(parent context.Context, page int, text string, width int) *RenderTask {
	ctx, cancel := context.WithCancel(parent)
	task := &RenderTask{Page: page, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(task.done)
		defer cancel()
		task.lines, task.err = layoutLines(ctx, text, width)
	}()
	return task
}

// Cancel stops the task. Calling it after completion is harmless.
func (t *RenderTask) Cancel() {
	if t != nil {
		t.cancel()
	}
}

// Done is closed once the task has finished or been cancelled.
func (t *RenderTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes and returns the laid-out lines.
func (t *RenderTask) Wait() ([]string, error) {
	<-t.done
	return t.lines, t.err
}

// IsCancelled distinguishes a superseded render from a real failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrRenderCancelled)
}

func layoutLines(ctx context.Context, text string, width int) ([]string, error) {
	if width < 1 {
		width = 1
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if ctx.Err() != nil {
			return nil, ErrRenderCancelled
		}
		// wordwrap breaks on spaces; wrap then hard-breaks runs without any,
		// which is the common case for CJK text.
		wrapped := wrap.String(wordwrap.String(paragraph, width), width)
		lines = append(lines, strings.Split(wrapped, "\n")...)
	}
	if ctx.Err() != nil {
		return nil, ErrRenderCancelled
	}
	return lines, nil
}
