package report

// Status is the lifecycle state of a report run. Non-terminal statuses are
// ordered; a run only moves forward through them. Failed and Cancelled are
// reachable from any non-terminal status. Terminal statuses are immutable.
type Status string

const (
	StatusPending     Status = "pending"
	StatusPlanning    Status = "planning"
	StatusResearching Status = "researching"
	StatusCritiquing  Status = "critiquing"
	StatusWriting     Status = "writing"
	StatusFormatting  Status = "formatting"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// statusRank orders the forward progression. Terminal statuses share the top
// rank so no transition out of them can ever be forward.
var statusRank = map[Status]int{
	StatusPending:     0,
	StatusPlanning:    1,
	StatusResearching: 2,
	StatusCritiquing:  3,
	StatusWriting:     4,
	StatusFormatting:  5,
	StatusCompleted:   6,
	StatusFailed:      6,
	StatusCancelled:   6,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether a run may move from s to next. Moves must be
// strictly forward; failed and cancelled are allowed from any non-terminal
// status.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() || s.Terminal() {
		return false
	}
	if next == StatusFailed || next == StatusCancelled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// NonTerminalStatuses lists every status a run can still move out of,
// in progression order. Store-layer guards use this set.
func NonTerminalStatuses() []Status {
	return []Status{
		StatusPending, StatusPlanning, StatusResearching,
		StatusCritiquing, StatusWriting, StatusFormatting,
	}
}
