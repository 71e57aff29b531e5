package report

import "time"

// ArtifactSchemaVersion tags every persisted artifact so later readers can
// detect shape drift between releases.
const ArtifactSchemaVersion = "1"

// Depth estimates how much digging a plan expects.
type Depth string

const (
	DepthShallow  Depth = "shallow"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// Plan is the planning phase artifact: the research questions to pursue and
// the intended approach.
type Plan struct {
	SchemaVersion string   `json:"schema_version"`
	Questions     []string `json:"questions"`
	Approach      string   `json:"approach"`
	Depth         Depth    `json:"depth"`
}

// Source is one ranked web result backing a finding.
type Source struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Snippet   string  `json:"snippet"`
	Published string  `json:"published,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
}

// Finding is the researched answer to a single plan question. Confidence is
// always stored normalized into [0,1].
type Finding struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Sources      []Source  `json:"sources"`
	Confidence   float64   `json:"confidence"`
	ResearchedAt time.Time `json:"researched_at"`
}

// Findings is the research phase artifact.
type Findings struct {
	SchemaVersion string    `json:"schema_version"`
	Items         []Finding `json:"items"`
	Summary       string    `json:"summary"`
}

// Critique is the critique phase artifact. Confidence is normalized into
// [0,1] the same way finding confidences are.
type Critique struct {
	SchemaVersion     string   `json:"schema_version"`
	Confidence        float64  `json:"confidence"`
	Gaps              []string `json:"gaps"`
	Biases            []string `json:"biases"`
	Contradictions    []string `json:"contradictions"`
	Suggestions       []string `json:"suggestions"`
	OverallAssessment string   `json:"overall_assessment"`
}

// ReviewSummary describes what the review pass changed in the draft.
type ReviewSummary struct {
	GrammarChanges   int    `json:"grammar_changes"`
	ClarityChanges   int    `json:"clarity_changes"`
	StructureChanges int    `json:"structure_changes"`
	ReadabilityScore int    `json:"readability_score"`
	OverallQuality   string `json:"overall_quality"`
}

// Metadata is the final artifact stored alongside the polished report.
type Metadata struct {
	SchemaVersion string        `json:"schema_version"`
	Review        ReviewSummary `json:"review"`
	WordCount     int           `json:"word_count"`
	SourceCount   int           `json:"source_count"`
}

// Run is the full projection of one report run.
type Run struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	Topic        string     `json:"topic"`
	Status       Status     `json:"status"`
	Plan         *Plan      `json:"research_plan,omitempty"`
	Findings     *Findings  `json:"findings,omitempty"`
	Critique     *Critique  `json:"critique,omitempty"`
	FinalReport  *string    `json:"final_report,omitempty"`
	Metadata     *Metadata  `json:"report_metadata,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Summary is the list-view projection of a run.
type Summary struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
