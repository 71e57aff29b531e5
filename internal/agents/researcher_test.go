package agents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/scribelab/scribe/internal/report"
)

func TestResearchAnswersEveryQuestion(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"answer": "because physics", "confidence": 0.9}`}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{
		"q1": sourcesFor(2),
		"q2": sourcesFor(3),
	}}
	r := NewResearcher(gen, search)

	findings, err := r.Research(context.Background(), []string{"q1", "q2"}, ResearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings.Items) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings.Items))
	}
	if findings.Items[0].Confidence != 0.9 {
		t.Fatalf("unexpected confidence %v", findings.Items[0].Confidence)
	}
	if findings.Items[0].Answer != "because physics" {
		t.Fatalf("unexpected answer %q", findings.Items[0].Answer)
	}
	if !strings.Contains(findings.Summary, "2 questions") {
		t.Fatalf("unexpected summary %q", findings.Summary)
	}
	if findings.SchemaVersion != report.ArtifactSchemaVersion {
		t.Fatalf("missing schema version")
	}
}

func TestResearchNormalizesPercentConfidence(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"answer": "a", "confidence": 85}`}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{"q": sourcesFor(1)}}

	findings, err := NewResearcher(gen, search).Research(context.Background(), []string{"q"}, ResearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := findings.Items[0].Confidence; got != 0.85 {
		t.Fatalf("expected 0.85, got %v", got)
	}
}

func TestResearchCollectsPartialFailures(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"answer": "a", "confidence": 0.5}`}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{
		"answered": sourcesFor(1),
		"empty":    nil,
	}}

	findings, err := NewResearcher(gen, search).Research(context.Background(),
		[]string{"answered", "empty"}, ResearchOptions{})
	if err != nil {
		t.Fatalf("one failed question must not be fatal: %v", err)
	}
	if len(findings.Items) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings.Items))
	}
	if !strings.Contains(findings.Summary, "could not be answered") {
		t.Fatalf("summary should mention failed questions: %q", findings.Summary)
	}
}

func TestResearchFailsWhenEveryQuestionFails(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"answer": "a", "confidence": 0.5}`}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{}}

	_, err := NewResearcher(gen, search).Research(context.Background(),
		[]string{"q1", "q2"}, ResearchOptions{})
	if !errors.Is(err, ErrNoFindings) {
		t.Fatalf("expected ErrNoFindings, got %v", err)
	}
	if !strings.Contains(err.Error(), "no sources found") {
		t.Fatalf("expected per-question causes in error, got %v", err)
	}
}

func TestResearchKeepsRawTextWhenAnswerNotJSON(t *testing.T) {
	gen := &fakeGenerator{responses: []string{"The answer is plainly forty-two."}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{"q": sourcesFor(1)}}

	findings, err := NewResearcher(gen, search).Research(context.Background(), []string{"q"}, ResearchOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if findings.Items[0].Answer != "The answer is plainly forty-two." {
		t.Fatalf("expected raw text answer, got %q", findings.Items[0].Answer)
	}
	if findings.Items[0].Confidence != defaultConfidence {
		t.Fatalf("expected default confidence, got %v", findings.Items[0].Confidence)
	}
}

func TestResearchParallelMode(t *testing.T) {
	gen := &fakeGenerator{responses: []string{`{"answer": "a", "confidence": 0.6}`}}
	search := &fakeSearcher{byQuery: map[string][]report.Source{
		"q1": sourcesFor(1), "q2": sourcesFor(1), "q3": sourcesFor(1),
	}}

	findings, err := NewResearcher(gen, search).Research(context.Background(),
		[]string{"q1", "q2", "q3"}, ResearchOptions{Parallel: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings.Items) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings.Items))
	}
	// Ordering must follow the question order even in parallel mode.
	for i, q := range []string{"q1", "q2", "q3"} {
		if findings.Items[i].Question != q {
			t.Fatalf("findings out of order: %+v", findings.Items)
		}
	}
}
