package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

// Reviewer polishes a drafted report. It must never lose the draft: when the
// model's output cannot be parsed, the original draft is returned with a
// minimal "needs-work" summary.
type Reviewer struct {
	llm    capability.Generator
	logger *log.Logger
}

// NewReviewer builds a reviewer over the given generation capability.
func NewReviewer(llm capability.Generator) *Reviewer {
	return &Reviewer{
		llm:    llm,
		logger: log.New(log.Writer(), "[REVIEWER] ", log.LstdFlags),
	}
}

type rawReview struct {
	FinalReport string `json:"final_report"`
	Changes     struct {
		Grammar   int `json:"grammar"`
		Clarity   int `json:"clarity"`
		Structure int `json:"structure"`
	} `json:"changes"`
	ReadabilityScore int    `json:"readability_score"`
	OverallQuality   string `json:"overall_quality"`
}

// Review polishes the draft and reports what changed.
func (r *Reviewer) Review(ctx context.Context, draft string, tier capability.Tier) (string, report.ReviewSummary, error) {
	prompt := fmt.Sprintf(`You are an editor. Polish the markdown report below for grammar, clarity
and structure without changing its factual content.

Respond with ONLY strict JSON:
{"final_report": "...", "changes": {"grammar": 0, "clarity": 0, "structure": 0}, "readability_score": 0, "overall_quality": "..."}
readability_score is 0-100.

Report:
%s`, draft)

	out, err := r.llm.Generate(ctx, capability.GenerateRequest{
		Prompt: prompt,
		Tier:   tier,
	})
	if err != nil {
		return "", report.ReviewSummary{}, fmt.Errorf("review generation: %w", err)
	}

	raw := rawReview{}
	if !capability.DecodeInto(out, &raw) || strings.TrimSpace(raw.FinalReport) == "" {
		r.logger.Printf("review response was not parseable, keeping original draft")
		return draft, needsWorkSummary(), nil
	}

	final := strings.TrimSpace(raw.FinalReport)
	if len(final) < len(draft)/2 {
		r.logger.Printf("review output is under half the draft length (%d vs %d chars)",
			len(final), len(draft))
	}

	score := raw.ReadabilityScore
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	quality := strings.TrimSpace(raw.OverallQuality)
	if quality == "" {
		quality = "good"
	}
	return final, report.ReviewSummary{
		GrammarChanges:   raw.Changes.Grammar,
		ClarityChanges:   raw.Changes.Clarity,
		StructureChanges: raw.Changes.Structure,
		ReadabilityScore: score,
		OverallQuality:   quality,
	}, nil
}

func needsWorkSummary() report.ReviewSummary {
	return report.ReviewSummary{OverallQuality: "needs-work"}
}
