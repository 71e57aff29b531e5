package report

import "testing"

func TestStatusForwardProgression(t *testing.T) {
	order := []Status{
		StatusPending, StatusPlanning, StatusResearching,
		StatusCritiquing, StatusWriting, StatusFormatting, StatusCompleted,
	}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].CanTransition(order[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", order[i], order[i+1])
		}
	}
	// Skipping ahead is still forward and allowed.
	if !StatusPending.CanTransition(StatusWriting) {
		t.Fatalf("forward skip should be allowed")
	}
}

func TestStatusNeverMovesBackward(t *testing.T) {
	if StatusWriting.CanTransition(StatusResearching) {
		t.Fatalf("backward transition must be rejected")
	}
	if StatusPlanning.CanTransition(StatusPlanning) {
		t.Fatalf("self transition must be rejected")
	}
}

func TestTerminalStatusesAreImmutable(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
		for _, next := range []Status{StatusPending, StatusPlanning, StatusFailed, StatusCancelled, StatusCompleted} {
			if s.CanTransition(next) {
				t.Fatalf("terminal %s must not transition to %s", s, next)
			}
		}
	}
}

func TestFailedAndCancelledReachableFromAnyNonTerminal(t *testing.T) {
	for _, s := range NonTerminalStatuses() {
		if !s.CanTransition(StatusFailed) {
			t.Fatalf("%s -> failed should be allowed", s)
		}
		if !s.CanTransition(StatusCancelled) {
			t.Fatalf("%s -> cancelled should be allowed", s)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	if Status("bogus").Valid() {
		t.Fatalf("unknown status should be invalid")
	}
	if Status("bogus").CanTransition(StatusPlanning) {
		t.Fatalf("unknown status must not transition")
	}
	if StatusPending.CanTransition(Status("bogus")) {
		t.Fatalf("transition to unknown status must be rejected")
	}
}
