package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

// Critic reviews research findings for gaps, biases and contradictions.
// A critique failure must never abort the run, so Critique degrades to a
// low-confidence placeholder instead of returning generation errors.
type Critic struct {
	llm    capability.Generator
	logger *log.Logger
}

// NewCritic builds a critic over the given generation capability.
func NewCritic(llm capability.Generator) *Critic {
	return &Critic{
		llm:    llm,
		logger: log.New(log.Writer(), "[CRITIC] ", log.LstdFlags),
	}
}

type rawCritique struct {
	Confidence        float64  `json:"confidence"`
	Gaps              []string `json:"gaps"`
	Biases            []string `json:"biases"`
	Contradictions    []string `json:"contradictions"`
	Suggestions       []string `json:"suggestions"`
	OverallAssessment string   `json:"overall_assessment"`
}

// Critique evaluates findings against the topic.
func (c *Critic) Critique(ctx context.Context, topic string, findings report.Findings) report.Critique {
	var b strings.Builder
	for _, f := range findings.Items {
		fmt.Fprintf(&b, "Q: %s\nA: %s\n(confidence %.2f, %d sources)\n\n",
			f.Question, f.Answer, f.Confidence, len(f.Sources))
	}
	prompt := fmt.Sprintf(`You are a research critic. Evaluate the findings below for the topic %q.

Findings:
%s
Respond with ONLY strict JSON:
{"confidence": 0.0, "gaps": [], "biases": [], "contradictions": [], "suggestions": [], "overall_assessment": "..."}
confidence is your overall trust in the findings, between 0 and 1.`, topic, b.String())

	out, err := c.llm.Generate(ctx, capability.GenerateRequest{
		Prompt: prompt,
		Tier:   capability.TierFast,
	})
	if err != nil {
		c.logger.Printf("critique generation failed, using degraded critique: %v", err)
		return degradedCritique()
	}

	raw := rawCritique{}
	if !capability.DecodeInto(out, &raw) {
		c.logger.Printf("critique response was not parseable JSON, using degraded critique")
		return degradedCritique()
	}

	assessment := strings.TrimSpace(raw.OverallAssessment)
	if assessment == "" {
		assessment = "No overall assessment was provided."
	}
	return report.Critique{
		SchemaVersion:     report.ArtifactSchemaVersion,
		Confidence:        normalizeConfidence(raw.Confidence),
		Gaps:              emptyIfNil(raw.Gaps),
		Biases:            emptyIfNil(raw.Biases),
		Contradictions:    emptyIfNil(raw.Contradictions),
		Suggestions:       emptyIfNil(raw.Suggestions),
		OverallAssessment: assessment,
	}
}

func degradedCritique() report.Critique {
	return report.Critique{
		SchemaVersion:     report.ArtifactSchemaVersion,
		Confidence:        0.3,
		Gaps:              []string{"automated critique unavailable; findings were not independently verified"},
		Biases:            []string{},
		Contradictions:    []string{},
		Suggestions:       []string{},
		OverallAssessment: "Critique could not be completed; treat findings with caution.",
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
