package guide

import (
	"strings"
	"testing"
)

func TestBuildPersonalizesSteps(t *testing.T) {
	t.Parallel()

	steps := Build(Metadata{Document: "report.pdf", Pages: 12, Model: "Ollama (llama3.2)"})
	if len(steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(steps))
	}
	if !strings.Contains(steps[0].Description, "report.pdf") {
		t.Fatalf("search step should name the document: %q", steps[0].Description)
	}
	if !strings.Contains(steps[1].Description, "pages 1-12") {
		t.Fatalf("navigate step should name the page range: %q", steps[1].Description)
	}
	if !strings.Contains(steps[4].Description, "Ollama (llama3.2)") {
		t.Fatalf("ask step should name the model: %q", steps[4].Description)
	}
	for _, step := range steps {
		if len(step.Examples) == 0 {
			t.Fatalf("step %q has no examples", step.Title)
		}
	}
}

func TestBuildFallbacks(t *testing.T) {
	t.Parallel()

	steps := Build(Metadata{})
	if !strings.Contains(steps[0].Description, "the document") {
		t.Fatalf("unexpected fallback: %q", steps[0].Description)
	}
	if !strings.Contains(steps[2].Description, "the language model") {
		t.Fatalf("unexpected fallback: %q", steps[2].Description)
	}
}
