// Package workflow contains the durable engine that drives one report run
// through the fixed phase sequence Plan -> Research -> Critique -> Write ->
// Review, persisting status and artifacts after every phase.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scribelab/scribe/internal/agents"
	"github.com/scribelab/scribe/internal/capability"
	"github.com/scribelab/scribe/internal/report"
)

// RunStore is the persistence the engine needs. Every mutation is guarded:
// implementations return report.ErrRunTerminal when the run already reached
// a terminal status and report.ErrRunNotFound when the run was deleted.
type RunStore interface {
	TransitionStatus(ctx context.Context, runID string, next report.Status) error
	SavePlan(ctx context.Context, runID string, plan report.Plan) error
	SaveFindings(ctx context.Context, runID string, findings report.Findings) error
	SaveCritique(ctx context.Context, runID string, critique report.Critique) error
	CompleteRun(ctx context.Context, runID string, finalReport string, meta report.Metadata) error
	FailRun(ctx context.Context, runID string, message string) error
	CancelRun(ctx context.Context, runID string, message string) error
}

// The five agents, as interfaces so tests inject deterministic fakes.
type (
	PlannerAgent interface {
		Plan(ctx context.Context, topic string) (report.Plan, error)
	}
	ResearcherAgent interface {
		Research(ctx context.Context, questions []string, opts agents.ResearchOptions) (report.Findings, error)
	}
	CriticAgent interface {
		Critique(ctx context.Context, topic string, findings report.Findings) report.Critique
	}
	WriterAgent interface {
		Write(ctx context.Context, topic string, findings report.Findings, critique *report.Critique, tier capability.Tier) (string, error)
	}
	ReviewerAgent interface {
		Review(ctx context.Context, draft string, tier capability.Tier) (string, report.ReviewSummary, error)
	}
)

// Options tune engine behaviour per deployment.
type Options struct {
	// PhaseRetries is how many extra attempts a failed phase gets.
	PhaseRetries int
	// PhaseRetryDelay is the base backoff between phase attempts.
	PhaseRetryDelay time.Duration
	// Research is forwarded to the researcher agent.
	Research agents.ResearchOptions
}

// Engine executes report runs. One Engine serves any number of concurrent
// runs; all per-run state lives on the stack of Execute.
type Engine struct {
	store      RunStore
	cancels    CancelRegistry
	planner    PlannerAgent
	researcher ResearcherAgent
	critic     CriticAgent
	writer     WriterAgent
	reviewer   ReviewerAgent
	retry      capability.Policy
	research   agents.ResearchOptions
	logger     *log.Logger
}

// New builds an engine.
func New(store RunStore, cancels CancelRegistry,
	planner PlannerAgent, researcher ResearcherAgent, critic CriticAgent,
	writer WriterAgent, reviewer ReviewerAgent, opts Options) *Engine {
	if opts.PhaseRetries < 0 {
		opts.PhaseRetries = 0
	}
	if opts.PhaseRetryDelay <= 0 {
		opts.PhaseRetryDelay = 2 * time.Second
	}
	return &Engine{
		store:      store,
		cancels:    cancels,
		planner:    planner,
		researcher: researcher,
		critic:     critic,
		writer:     writer,
		reviewer:   reviewer,
		retry:      capability.Policy{MaxAttempts: opts.PhaseRetries + 1, BaseDelay: opts.PhaseRetryDelay},
		research:   opts.Research,
		logger:     log.New(log.Writer(), "[ENGINE] ", log.LstdFlags),
	}
}

type phase struct {
	name   string
	status report.Status
	run    func(ctx context.Context) error
}

// Execute drives one run to a terminal status. It never leaves a run
// dangling: on any exit path the run is completed, failed, cancelled, or was
// deleted out from under the engine (in which case remaining writes are
// dropped). The returned error is for the caller's log only.
func (e *Engine) Execute(ctx context.Context, runID, topic string) error {
	runsStarted.Inc()
	e.logger.Printf("run %s: starting for topic %q", runID, topic)

	var (
		plan          report.Plan
		findings      report.Findings
		critique      report.Critique
		draft         string
		finalReport   string
		reviewSummary report.ReviewSummary
	)

	phases := []phase{
		{"planning", report.StatusPlanning, func(ctx context.Context) error {
			p, err := e.planner.Plan(ctx, topic)
			if err != nil {
				return err
			}
			plan = p
			return e.store.SavePlan(ctx, runID, plan)
		}},
		{"research", report.StatusResearching, func(ctx context.Context) error {
			f, err := e.researcher.Research(ctx, plan.Questions, e.research)
			if err != nil {
				return err
			}
			findings = f
			return e.store.SaveFindings(ctx, runID, findings)
		}},
		{"critique", report.StatusCritiquing, func(ctx context.Context) error {
			critique = e.critic.Critique(ctx, topic, findings)
			return e.store.SaveCritique(ctx, runID, critique)
		}},
		{"writing", report.StatusWriting, func(ctx context.Context) error {
			d, err := e.writer.Write(ctx, topic, findings, &critique, capability.TierQuality)
			if err != nil {
				return err
			}
			draft = d
			return nil
		}},
		{"review", report.StatusFormatting, func(ctx context.Context) error {
			final, summary, err := e.reviewer.Review(ctx, draft, capability.TierQuality)
			if err != nil {
				return err
			}
			finalReport, reviewSummary = final, summary
			return nil
		}},
	}

	for _, p := range phases {
		if e.stopIfCancelled(ctx, runID) {
			return nil
		}
		if err := e.store.TransitionStatus(ctx, runID, p.status); err != nil {
			return e.handleStoreError(runID, p.name, err)
		}
		if err := e.runPhase(ctx, runID, p); err != nil {
			if isStoreStop(err) {
				return e.handleStoreError(runID, p.name, err)
			}
			return e.failRun(ctx, runID, p.name, err)
		}
	}

	meta := report.Metadata{
		SchemaVersion: report.ArtifactSchemaVersion,
		Review:        reviewSummary,
		WordCount:     len(strings.Fields(finalReport)),
		SourceCount:   countSources(findings),
	}
	if err := e.store.CompleteRun(ctx, runID, finalReport, meta); err != nil {
		return e.handleStoreError(runID, "completion", err)
	}
	runsFinished.WithLabelValues(string(report.StatusCompleted)).Inc()
	e.clearSignal(runID)
	e.logger.Printf("run %s: completed (%d words, %d sources)", runID, meta.WordCount, meta.SourceCount)
	return nil
}

// runPhase executes one phase under the engine's retry policy. Store guard
// errors abort the retry loop immediately; there is nothing left to retry
// once the run is terminal or gone.
func (e *Engine) runPhase(ctx context.Context, runID string, p phase) error {
	started := time.Now()
	defer func() {
		phaseDuration.WithLabelValues(p.name).Observe(time.Since(started).Seconds())
	}()

	attempt := 0
	var stopErr error
	err := e.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			phaseRetries.WithLabelValues(p.name).Inc()
			e.logger.Printf("run %s: retrying %s phase (attempt %d)", runID, p.name, attempt)
		}
		err := p.run(ctx)
		if isStoreStop(err) {
			stopErr = err
			return nil
		}
		return err
	})
	if stopErr != nil {
		return stopErr
	}
	return err
}

// stopIfCancelled checks the out-of-band cancellation signal and, when set,
// marks the run cancelled. The request boundary already wrote the terminal
// status synchronously, so the store call here usually hits the terminal
// guard; that is fine.
func (e *Engine) stopIfCancelled(ctx context.Context, runID string) bool {
	cancelled, err := e.cancels.Signalled(ctx, runID)
	if err != nil {
		e.logger.Printf("run %s: cancel check failed: %v", runID, err)
		return false
	}
	if !cancelled {
		return false
	}
	e.logger.Printf("run %s: cancellation observed, stopping", runID)
	if err := e.store.CancelRun(ctx, runID, "cancelled by user"); err != nil && !isStoreStop(err) {
		e.logger.Printf("run %s: marking cancelled failed: %v", runID, err)
	}
	runsFinished.WithLabelValues(string(report.StatusCancelled)).Inc()
	e.clearSignal(runID)
	return true
}

// failRun records a terminal failure with a classified message. Raw error
// detail stays in the server log only.
func (e *Engine) failRun(ctx context.Context, runID, phaseName string, cause error) error {
	e.logger.Printf("run %s: %s phase failed: %v", runID, phaseName, cause)
	message := fmt.Sprintf("%s failed: %s", phaseName, classify(ctx, cause))
	if err := e.store.FailRun(ctx, runID, message); err != nil && !isStoreStop(err) {
		e.logger.Printf("run %s: marking failed failed: %v", runID, err)
	}
	runsFinished.WithLabelValues(string(report.StatusFailed)).Inc()
	return fmt.Errorf("%s phase: %w", phaseName, cause)
}

// handleStoreError deals with a guarded store write that did not go through.
// Terminal and not-found guards mean another writer won the race (cancel or
// delete); the engine stops quietly. Anything else is a real storage fault.
func (e *Engine) handleStoreError(runID, where string, err error) error {
	if isStoreStop(err) {
		e.logger.Printf("run %s: stopping at %s, run is terminal or deleted", runID, where)
		return nil
	}
	e.logger.Printf("run %s: store write failed at %s: %v", runID, where, err)
	return fmt.Errorf("store write at %s: %w", where, err)
}

func (e *Engine) clearSignal(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.cancels.Clear(ctx, runID); err != nil {
		e.logger.Printf("run %s: clearing cancel signal failed: %v", runID, err)
	}
}

func isStoreStop(err error) bool {
	return errors.Is(err, report.ErrRunTerminal) || errors.Is(err, report.ErrRunNotFound)
}

func countSources(findings report.Findings) int {
	n := 0
	for _, f := range findings.Items {
		n += len(f.Sources)
	}
	return n
}

// classify maps internal failures to the generic messages exposed to users.
func classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return "run timed out"
	case errors.Is(err, agents.ErrNoFindings):
		return "no usable sources were found for the research questions"
	case errors.Is(err, agents.ErrTooFewQuestions):
		return "planning did not produce enough research questions"
	case errors.Is(err, agents.ErrReportTooShort):
		return "the drafted report was too short to publish"
	case strings.Contains(strings.ToLower(err.Error()), "rate limit"):
		return "rate limit exceeded"
	default:
		return "internal error"
	}
}
