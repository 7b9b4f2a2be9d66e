package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csheth/pagelens/internal/document"
	"github.com/csheth/pagelens/internal/session"
	"github.com/csheth/pagelens/internal/transcript"
)

func TestExchangeFromState(t *testing.T) {
	state := session.State{Response: "Navigated to page 2.", Page: 2}
	entry := exchangeFromState("go to page 2", "navigate", 1, state, nil)
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("exchange should be stamped: %#v", entry)
	}
	if entry.Command != "go to page 2" || entry.Page != 1 || entry.Response != "Navigated to page 2." {
		t.Fatalf("unexpected exchange %#v", entry)
	}

	entry = exchangeFromState("summarize", "summarize", 1, session.State{}, errors.New("timeout"))
	if entry.Error != "timeout" {
		t.Fatalf("job error should be kept when the session has none, got %q", entry.Error)
	}
}

func TestDescribeLoadError(t *testing.T) {
	if got := describeLoadError(fmt.Errorf("open: %w", document.ErrNotPDF)); got != "Please select a PDF file." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := describeLoadError(errors.New("no such file")); got != "Failed to load PDF: no such file" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := describeLoadError(nil); got != "" {
		t.Fatalf("nil error should map to empty, got %q", got)
	}
}

func TestSaveTranscriptJobAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.json")
	entry := transcript.NewExchange("extract text", "extract", 1)
	msg, err := saveTranscriptJob(path, "session-1", "report.pdf", &transcript.LLMInfo{Name: "fake"}, []transcript.Exchange{entry})(context.Background())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, ok := msg.(transcriptSavedMsg)
	if !ok || saved.count != 1 {
		t.Fatalf("unexpected payload %#v", msg)
	}
	snapshots, err := transcript.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snapshots) != 1 || len(snapshots[0].Exchanges) != 1 {
		t.Fatalf("unexpected transcript %#v", snapshots)
	}
}

func TestJobTrackerBadges(t *testing.T) {
	tracker := jobTracker{}
	now := time.Now()
	tracker.record(jobSnapshot{ID: "load-1", Kind: jobKindLoad, Status: jobStatusRunning, StartedAt: now})
	tracker.record(jobSnapshot{ID: "command-2", Kind: jobKindCommand, Status: jobStatusRunning, StartedAt: now.Add(time.Second)})
	if got := strings.Join(tracker.badges(), ","); got != "load…,command…" {
		t.Fatalf("unexpected badges %q", got)
	}
	if !tracker.running(jobKindCommand) {
		t.Fatal("command job should be running")
	}
	tracker.record(jobSnapshot{ID: "command-2", Kind: jobKindCommand, Status: jobStatusSucceeded})
	if tracker.running(jobKindCommand) {
		t.Fatal("finished jobs should be dropped")
	}
}

func TestJobBusWrapsPayload(t *testing.T) {
	bus := newJobBus(context.Background())
	id := bus.nextID(jobKindProbe)
	if id != "probe-1" {
		t.Fatalf("unexpected id %q", id)
	}
	if next := bus.nextID(jobKindProbe); next != "probe-2" {
		t.Fatalf("ids should increase, got %q", next)
	}
}
