package agents

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

const (
	minQuestions = 5
	maxQuestions = 7
)

// Planner turns a topic into a research plan of 5 to 7 questions.
type Planner struct {
	llm    capability.Generator
	logger *log.Logger
}

// NewPlanner builds a planner over the given generation capability.
func NewPlanner(llm capability.Generator) *Planner {
	return &Planner{
		llm:    llm,
		logger: log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
	}
}

type rawPlan struct {
	Questions []string `json:"questions"`
	Approach  string   `json:"approach"`
	Depth     string   `json:"depth"`
}

// Plan asks the model for a research plan and validates it. Parse failures
// fall back to a templated plan; a plan with fewer than 5 usable questions
// is an error.
func (p *Planner) Plan(ctx context.Context, topic string) (report.Plan, error) {
	prompt := fmt.Sprintf(`You are a research planner. Produce a research plan for the topic below.

Topic: %s

Respond with ONLY strict JSON, no prose, in this shape:
{"questions": ["..."], "approach": "...", "depth": "shallow|standard|deep"}

Rules:
- questions: between %d and %d focused research questions
- approach: one sentence describing the research strategy
- depth: how much digging the topic needs`, topic, minQuestions, maxQuestions)

	out, err := p.llm.Generate(ctx, capability.GenerateRequest{
		Prompt: prompt,
		Tier:   capability.TierFast,
	})
	if err != nil {
		return report.Plan{}, fmt.Errorf("planning generation: %w", err)
	}

	raw := rawPlan{}
	if !capability.DecodeInto(out, &raw) {
		p.logger.Printf("plan response was not parseable JSON, using templated plan")
		raw = templatePlan(topic)
	}

	questions := make([]string, 0, len(raw.Questions))
	for _, q := range raw.Questions {
		q = strings.TrimSpace(q)
		if q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) > maxQuestions {
		p.logger.Printf("plan had %d questions, truncating to %d", len(questions), maxQuestions)
		questions = questions[:maxQuestions]
	}
	if len(questions) < minQuestions {
		return report.Plan{}, fmt.Errorf("%w: got %d, need at least %d",
			ErrTooFewQuestions, len(questions), minQuestions)
	}

	depth := report.Depth(raw.Depth)
	switch depth {
	case report.DepthShallow, report.DepthStandard, report.DepthDeep:
	default:
		depth = report.DepthStandard
	}
	approach := strings.TrimSpace(raw.Approach)
	if approach == "" {
		approach = "Answer each research question from current web sources and synthesize."
	}

	return report.Plan{
		SchemaVersion: report.ArtifactSchemaVersion,
		Questions:     questions,
		Approach:      approach,
		Depth:         depth,
	}, nil
}

// templatePlan is the deterministic fallback used when the model output
// cannot be parsed.
func templatePlan(topic string) rawPlan {
	return rawPlan{
		Questions: []string{
			fmt.Sprintf("What is %s?", topic),
			fmt.Sprintf("What are the most recent developments in %s?", topic),
			fmt.Sprintf("What are the main challenges and open problems in %s?", topic),
			fmt.Sprintf("Who are the key organizations and stakeholders involved in %s?", topic),
			fmt.Sprintf("What is the future outlook for %s?", topic),
		},
		Approach: "Answer each research question from current web sources and synthesize.",
		Depth:    string(report.DepthStandard),
	}
}
