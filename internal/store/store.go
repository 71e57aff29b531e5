// Package store is the Postgres persistence layer. Every mutation of a
// report run is guarded so terminal runs stay immutable and writes to
// deleted runs surface as report.ErrRunNotFound.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/scribelab/scribe/internal/report"
)

// Store wraps the Postgres connection.
type Store struct {
	db *sql.DB
}

// New opens a Postgres connection and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// ErrEmailTaken is returned when signup hits the unique email constraint.
var ErrEmailTaken = errors.New("email already registered")

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string, credits int) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, credits) VALUES ($1, $2, $3) RETURNING id`,
		email, passwordHash, credits).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("creating user: %w", err)
	}
	return id, nil
}

// GetUserByEmail returns id and password hash for login checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (id, passwordHash string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).
		Scan(&id, &passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", sql.ErrNoRows
	}
	if err != nil {
		return "", "", fmt.Errorf("fetching user: %w", err)
	}
	return id, passwordHash, nil
}

// Credits returns the user's remaining quota units.
func (s *Store) Credits(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx,
		`SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
	if err != nil {
		return 0, fmt.Errorf("fetching credits: %w", err)
	}
	return credits, nil
}

// ReplenishCredits tops every user back up to the configured allowance.
// Users above the allowance keep what they have.
func (s *Store) ReplenishCredits(ctx context.Context, to int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits = $1 WHERE credits < $1`, to)
	if err != nil {
		return 0, fmt.Errorf("replenishing credits: %w", err)
	}
	return res.RowsAffected()
}

// CreateRunWithDebit atomically debits one credit and creates a pending run.
// The debit uses a conditional UPDATE so two concurrent requests can never
// both spend the same last credit. Returns report.ErrInsufficientCredits
// without side effects when the balance is empty.
func (s *Store) CreateRunWithDebit(ctx context.Context, userID, topic string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning debit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET credits = credits - 1 WHERE id = $1 AND credits >= 1`, userID)
	if err != nil {
		return "", fmt.Errorf("debiting credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("debiting credit: %w", err)
	}
	if n == 0 {
		return "", report.ErrInsufficientCredits
	}

	var id string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO reports (user_id, topic, status) VALUES ($1, $2, $3) RETURNING id`,
		userID, topic, string(report.StatusPending)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing debit tx: %w", err)
	}
	return id, nil
}

// GetRun returns the full projection of an owned run.
func (s *Store) GetRun(ctx context.Context, runID, userID string) (report.Run, error) {
	var (
		run       report.Run
		planB     []byte
		findingsB []byte
		critiqueB []byte
		finalRep  sql.NullString
		metaB     []byte
		errMsg    sql.NullString
		completed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic, status, research_plan, findings, critique,
		       final_report, report_metadata, error_message, created_at, completed_at
		FROM reports WHERE id = $1 AND user_id = $2`, runID, userID).
		Scan(&run.ID, &run.UserID, &run.Topic, &run.Status, &planB, &findingsB,
			&critiqueB, &finalRep, &metaB, &errMsg, &run.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Run{}, report.ErrRunNotFound
	}
	if err != nil {
		return report.Run{}, fmt.Errorf("fetching run: %w", err)
	}

	if len(planB) > 0 {
		run.Plan = &report.Plan{}
		if err := json.Unmarshal(planB, run.Plan); err != nil {
			return report.Run{}, fmt.Errorf("decoding plan: %w", err)
		}
	}
	if len(findingsB) > 0 {
		run.Findings = &report.Findings{}
		if err := json.Unmarshal(findingsB, run.Findings); err != nil {
			return report.Run{}, fmt.Errorf("decoding findings: %w", err)
		}
	}
	if len(critiqueB) > 0 {
		run.Critique = &report.Critique{}
		if err := json.Unmarshal(critiqueB, run.Critique); err != nil {
			return report.Run{}, fmt.Errorf("decoding critique: %w", err)
		}
	}
	if len(metaB) > 0 {
		run.Metadata = &report.Metadata{}
		if err := json.Unmarshal(metaB, run.Metadata); err != nil {
			return report.Run{}, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	if finalRep.Valid {
		run.FinalReport = &finalRep.String
	}
	if errMsg.Valid {
		run.ErrorMessage = &errMsg.String
	}
	if completed.Valid {
		run.CompletedAt = &completed.Time
	}
	return run, nil
}

// ListRuns returns the caller's runs newest first, capped at limit.
func (s *Store) ListRuns(ctx context.Context, userID string, limit int) ([]report.Summary, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, status, created_at, completed_at
		FROM reports WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := make([]report.Summary, 0, limit)
	for rows.Next() {
		var (
			item      report.Summary
			completed sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Topic, &item.Status, &item.CreatedAt, &completed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if completed.Valid {
			item.CompletedAt = &completed.Time
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// nonTerminal renders the non-terminal status set for guard clauses.
func nonTerminal() pq.StringArray {
	statuses := report.NonTerminalStatuses()
	arr := make(pq.StringArray, len(statuses))
	for i, s := range statuses {
		arr[i] = string(s)
	}
	return arr
}

// guardedUpdate runs an UPDATE that must hit exactly one live row. When no
// row was touched it distinguishes a terminal run from a deleted one.
func (s *Store) guardedUpdate(ctx context.Context, runID, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1`, runID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return report.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("checking run after guarded update: %w", err)
	}
	return report.ErrRunTerminal
}

// legalPriors renders the statuses a run may move to next from, per the
// domain transition table. The set is baked into the UPDATE guard so the
// check and the write are one atomic statement.
func legalPriors(next report.Status) pq.StringArray {
	var arr pq.StringArray
	for _, s := range report.NonTerminalStatuses() {
		if s.CanTransition(next) {
			arr = append(arr, string(s))
		}
	}
	return arr
}

// TransitionStatus moves a run to the next in-progress status. The guard only
// matches statuses that may legally precede next, so backward and repeated
// transitions are rejected at the same atomic UPDATE that rejects terminal
// and deleted runs.
func (s *Store) TransitionStatus(ctx context.Context, runID string, next report.Status) error {
	if !next.Valid() {
		return fmt.Errorf("invalid status %q", next)
	}
	allowed := legalPriors(next)
	if len(allowed) == 0 {
		return fmt.Errorf("no legal transition into %q", next)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports SET status = $2
		WHERE id = $1 AND status = ANY($3)`,
		runID, string(next), allowed)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	if n > 0 {
		return nil
	}
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1`, runID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return report.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("checking run after transition: %w", err)
	}
	if report.Status(current).Terminal() {
		return report.ErrRunTerminal
	}
	return fmt.Errorf("illegal transition from %s to %s", current, next)
}

// SavePlan persists the planning artifact.
func (s *Store) SavePlan(ctx context.Context, runID string, plan report.Plan) error {
	b, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET research_plan = $2
		WHERE id = $1 AND status = ANY($3)`, runID, b, nonTerminal())
}

// SaveFindings persists the research artifact.
func (s *Store) SaveFindings(ctx context.Context, runID string, findings report.Findings) error {
	b, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("encoding findings: %w", err)
	}
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET findings = $2
		WHERE id = $1 AND status = ANY($3)`, runID, b, nonTerminal())
}

// SaveCritique persists the critique artifact.
func (s *Store) SaveCritique(ctx context.Context, runID string, critique report.Critique) error {
	b, err := json.Marshal(critique)
	if err != nil {
		return fmt.Errorf("encoding critique: %w", err)
	}
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET critique = $2
		WHERE id = $1 AND status = ANY($3)`, runID, b, nonTerminal())
}

// CompleteRun writes the final report, metadata, completion time and the
// completed status in one atomic statement.
func (s *Store) CompleteRun(ctx context.Context, runID, finalReport string, meta report.Metadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET status = $2, final_report = $3, report_metadata = $4, completed_at = NOW()
		WHERE id = $1 AND status = ANY($5)`,
		runID, string(report.StatusCompleted), finalReport, b, nonTerminal())
}

// FailRun marks a run failed with its classified error message.
func (s *Store) FailRun(ctx context.Context, runID, message string) error {
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status = ANY($4)`,
		runID, string(report.StatusFailed), message, nonTerminal())
}

// CancelRun marks a run cancelled. Guarded like every terminal write, so
// cancelling an already-finished run returns report.ErrRunTerminal.
func (s *Store) CancelRun(ctx context.Context, runID, message string) error {
	return s.guardedUpdate(ctx, runID, `
		UPDATE reports SET status = $2, error_message = $3, completed_at = NOW()
		WHERE id = $1 AND status = ANY($4)`,
		runID, string(report.StatusCancelled), message, nonTerminal())
}

// CancelOwnedRun is the boundary variant of CancelRun: it also checks
// ownership, returning report.ErrRunNotFound for other users' runs. It is
// idempotent for runs that are already cancelled.
func (s *Store) CancelOwnedRun(ctx context.Context, runID, userID, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports SET status = $3, error_message = $4, completed_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = ANY($5)`,
		runID, userID, string(report.StatusCancelled), message, nonTerminal())
	if err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancelling run: %w", err)
	}
	if n > 0 {
		return nil
	}
	var status string
	err = s.db.QueryRowContext(ctx,
		`SELECT status FROM reports WHERE id = $1 AND user_id = $2`, runID, userID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return report.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("checking run after cancel: %w", err)
	}
	// Cancelling twice is a no-op; only completed and failed runs reject.
	if report.Status(status) == report.StatusCancelled {
		return nil
	}
	return report.ErrRunTerminal
}

// DeleteRun removes an owned run entirely. An in-flight engine execution is
// unaffected except that its remaining writes are dropped by the guards.
func (s *Store) DeleteRun(ctx context.Context, runID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reports WHERE id = $1 AND user_id = $2`, runID, userID)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n == 0 {
		return report.ErrRunNotFound
	}
	return nil
}
