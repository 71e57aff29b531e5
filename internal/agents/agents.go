// Package agents holds the five stateless pipeline transformations:
// Planner, Researcher, Critic, Writer and Reviewer. Each one calls the
// capability clients, parses the model output leniently, and degrades to a
// safe default rather than failing unless the result would be useless.
package agents

import "errors"

var (
	// ErrTooFewQuestions is returned when planning produced a syntactically
	// valid plan that still has fewer questions than a useful run needs.
	ErrTooFewQuestions = errors.New("plan has too few research questions")

	// ErrNoFindings is returned when every research question failed.
	ErrNoFindings = errors.New("no sources found for any research question")

	// ErrReportTooShort is returned when the drafted report is trivially small.
	ErrReportTooShort = errors.New("draft report is too short")
)

const defaultConfidence = 0.5

// normalizeConfidence maps model-reported confidence into [0,1]. Values
// above 1 are treated as percentages; anything still out of range falls back
// to the default.
func normalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 || v > 1 {
		return defaultConfidence
	}
	return v
}
