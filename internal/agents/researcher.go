package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

// ResearchOptions controls how a research pass runs.
type ResearchOptions struct {
	// Parallel researches questions concurrently (bounded) instead of
	// sequentially with a delay between questions.
	Parallel bool
	// MaxSources caps web results fetched per question.
	MaxSources int
	// QuestionDelay is the pause between questions in sequential mode,
	// protecting downstream rate limits.
	QuestionDelay time.Duration
}

// parallelLimit bounds concurrent question research in parallel mode.
const parallelLimit = 3

// Researcher answers plan questions from web sources.
type Researcher struct {
	llm    capability.Generator
	search capability.Searcher
	logger *log.Logger
}

// NewResearcher builds a researcher over the given capabilities.
func NewResearcher(llm capability.Generator, search capability.Searcher) *Researcher {
	return &Researcher{
		llm:    llm,
		search: search,
		logger: log.New(log.Writer(), "[RESEARCHER] ", log.LstdFlags),
	}
}

// Research answers every question, collecting per-question failures. It
// fails only when no question produced a finding.
func (r *Researcher) Research(ctx context.Context, questions []string, opts ResearchOptions) (report.Findings, error) {
	if opts.MaxSources <= 0 {
		opts.MaxSources = 5
	}

	var (
		findings []report.Finding
		failures []string
	)
	if opts.Parallel {
		findings, failures = r.researchParallel(ctx, questions, opts)
	} else {
		findings, failures = r.researchSequential(ctx, questions, opts)
	}

	if len(findings) == 0 {
		if err := ctx.Err(); err != nil {
			return report.Findings{}, err
		}
		return report.Findings{}, fmt.Errorf("%w: %s", ErrNoFindings, strings.Join(failures, "; "))
	}
	for _, f := range failures {
		r.logger.Printf("question failed: %s", f)
	}

	return report.Findings{
		SchemaVersion: report.ArtifactSchemaVersion,
		Items:         findings,
		Summary:       summarize(findings, failures),
	}, nil
}

func (r *Researcher) researchSequential(ctx context.Context, questions []string, opts ResearchOptions) ([]report.Finding, []string) {
	var findings []report.Finding
	var failures []string
	for i, q := range questions {
		if i > 0 && opts.QuestionDelay > 0 {
			select {
			case <-time.After(opts.QuestionDelay):
			case <-ctx.Done():
				return findings, append(failures, ctx.Err().Error())
			}
		}
		f, err := r.researchQuestion(ctx, q, opts.MaxSources)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%q: %v", q, err))
			continue
		}
		findings = append(findings, f)
	}
	return findings, failures
}

func (r *Researcher) researchParallel(ctx context.Context, questions []string, opts ResearchOptions) ([]report.Finding, []string) {
	var mu sync.Mutex
	results := make([]*report.Finding, len(questions))
	var failures []string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelLimit)
	for i, q := range questions {
		i, q := i, q
		g.Go(func() error {
			f, err := r.researchQuestion(gctx, q, opts.MaxSources)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%q: %v", q, err))
				return nil
			}
			results[i] = &f
			return nil
		})
	}
	g.Wait()

	findings := make([]report.Finding, 0, len(questions))
	for _, f := range results {
		if f != nil {
			findings = append(findings, *f)
		}
	}
	return findings, failures
}

type rawAnswer struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

func (r *Researcher) researchQuestion(ctx context.Context, question string, maxSources int) (report.Finding, error) {
	sources, err := r.search.Search(ctx, question, maxSources)
	if err != nil {
		return report.Finding{}, fmt.Errorf("search: %w", err)
	}
	if len(sources) == 0 {
		return report.Finding{}, fmt.Errorf("no sources found")
	}

	var b strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, s.Title, s.URL, s.Snippet)
	}
	prompt := fmt.Sprintf(`Answer the research question using only the sources below.

Question: %s

Sources:
%s
Respond with ONLY strict JSON: {"answer": "...", "confidence": 0.0}
confidence is how well the sources support the answer, between 0 and 1.`, question, b.String())

	out, err := r.llm.Generate(ctx, capability.GenerateRequest{
		Prompt: prompt,
		Tier:   capability.TierFast,
	})
	if err != nil {
		return report.Finding{}, fmt.Errorf("synthesis: %w", err)
	}

	ans := rawAnswer{Answer: strings.TrimSpace(out), Confidence: defaultConfidence}
	if !capability.DecodeInto(out, &ans) {
		r.logger.Printf("answer for %q was not JSON, keeping raw text", question)
	}
	if strings.TrimSpace(ans.Answer) == "" {
		return report.Finding{}, fmt.Errorf("empty synthesized answer")
	}

	return report.Finding{
		ID:           uuid.NewString(),
		Question:     question,
		Answer:       strings.TrimSpace(ans.Answer),
		Sources:      sources,
		Confidence:   normalizeConfidence(ans.Confidence),
		ResearchedAt: time.Now().UTC(),
	}, nil
}

func summarize(findings []report.Finding, failures []string) string {
	total := 0
	var sum float64
	for _, f := range findings {
		total += len(f.Sources)
		sum += f.Confidence
	}
	avg := sum / float64(len(findings))
	s := fmt.Sprintf("Answered %d questions from %d sources (mean confidence %.2f).",
		len(findings), total, avg)
	if len(failures) > 0 {
		s += fmt.Sprintf(" %d questions could not be answered.", len(failures))
	}
	return s
}
