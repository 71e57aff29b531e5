package server

import (
	"testing"
	"time"
)

func TestIsDueFirstRun(t *testing.T) {
	for _, spec := range []string{"@daily", "@hourly", "0 0 * * *"} {
		if !isDue(spec, nil) {
			t.Fatalf("first reset with spec %q must be due", spec)
		}
	}
}

func TestIsDueDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("daily reset must not fire an hour after the last one")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatalf("daily reset must fire after 25 hours")
	}
}

func TestIsDueHourly(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatalf("hourly reset must not fire after 10 minutes")
	}
	old := time.Now().Add(-61 * time.Minute)
	if !isDue("@hourly", &old) {
		t.Fatalf("hourly reset must fire after 61 minutes")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// Midnight cron: a last reset from two days ago always has a next
	// occurrence in the past.
	old := time.Now().Add(-48 * time.Hour)
	if !isDue("0 0 * * *", &old) {
		t.Fatalf("cron reset must fire when the next occurrence passed")
	}
	// A reset moments ago has its next occurrence in the future.
	recent := time.Now()
	if isDue("0 0 * * *", &recent) {
		t.Fatalf("cron reset must not fire before the next occurrence")
	}
}

func TestIsDueInvalidSpecFallsBackDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron", &recent) {
		t.Fatalf("invalid spec must fall back to daily cadence")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron", &old) {
		t.Fatalf("invalid spec must fire after a day")
	}
}
