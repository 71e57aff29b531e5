package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

// minDraftLength is the smallest draft accepted as a real report.
const minDraftLength = 200

// expectedHeadings are conventional report sections; their absence is worth
// a warning but not a failure.
var expectedHeadings = []string{"introduction", "conclusion"}

// Writer drafts the markdown report from findings and critique.
type Writer struct {
	llm    capability.Generator
	logger *log.Logger
}

// NewWriter builds a writer over the given generation capability.
func NewWriter(llm capability.Generator) *Writer {
	return &Writer{
		llm:    llm,
		logger: log.New(log.Writer(), "[WRITER] ", log.LstdFlags),
	}
}

// Write produces a markdown draft. Drafts below the minimum length are
// rejected; missing conventional headings only log a warning.
func (w *Writer) Write(ctx context.Context, topic string, findings report.Findings, critique *report.Critique, tier capability.Tier) (string, error) {
	var b strings.Builder
	for _, f := range findings.Items {
		fmt.Fprintf(&b, "## %s\n%s\n\nSources:\n", f.Question, f.Answer)
		for _, s := range f.Sources {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Title, s.URL)
		}
		b.WriteString("\n")
	}

	var critiqueSection string
	if critique != nil {
		var cb strings.Builder
		cb.WriteString("Address this critique while writing:\n")
		for _, g := range critique.Gaps {
			fmt.Fprintf(&cb, "- gap: %s\n", g)
		}
		for _, s := range critique.Suggestions {
			fmt.Fprintf(&cb, "- suggestion: %s\n", s)
		}
		fmt.Fprintf(&cb, "- overall: %s\n", critique.OverallAssessment)
		critiqueSection = cb.String()
	}

	prompt := fmt.Sprintf(`Write a well-structured markdown research report on %q.

Use the research findings below as your only factual basis. Cite sources
inline by title. Include an introduction and a conclusion.

%s
Findings:
%s`, topic, critiqueSection, b.String())

	draft, err := w.llm.Generate(ctx, capability.GenerateRequest{
		Prompt: prompt,
		Tier:   tier,
	})
	if err != nil {
		return "", fmt.Errorf("writing generation: %w", err)
	}

	draft = strings.TrimSpace(draft)
	if len(draft) < minDraftLength {
		return "", fmt.Errorf("%w: %d chars", ErrReportTooShort, len(draft))
	}
	lower := strings.ToLower(draft)
	for _, h := range expectedHeadings {
		if !strings.Contains(lower, h) {
			w.logger.Printf("draft is missing expected %q section", h)
		}
	}
	return draft, nil
}
