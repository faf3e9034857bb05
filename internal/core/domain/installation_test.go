package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseOperationalStatus(t *testing.T) {
	for _, s := range []string{"scheduled", "in_progress", "completed", "failed", "canceled"} {
		if _, err := ParseOperationalStatus(s); err != nil {
			t.Fatalf("status %q rejected: %v", s, err)
		}
	}

	for _, s := range []string{"staged", "done", ""} {
		_, err := ParseOperationalStatus(s)
		if !errors.Is(err, ErrBadRequest) {
			t.Fatalf("expected bad request for %q, got %v", s, err)
		}
		want := "status must be one of: scheduled, in_progress, completed, failed, canceled"
		if err.Error() != want {
			t.Fatalf("unexpected message: %q", err.Error())
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	if err := ValidateSchedule(&start, &end); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	if err := ValidateSchedule(&start, &start); err != nil {
		t.Fatalf("equal bounds rejected: %v", err)
	}
	if err := ValidateSchedule(nil, &end); err != nil {
		t.Fatalf("open start rejected: %v", err)
	}
	if err := ValidateSchedule(&end, &start); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected bad request for start after end, got %v", err)
	}
}

func TestCrewAssignment_ApplyDecision(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	a := &CrewAssignment{}

	steps := []struct {
		accepted, declined bool
		wantAccepted       bool
		wantDeclined       bool
	}{
		{false, true, false, true},
		{true, false, true, false},
		{false, true, false, true},
		{true, true, true, false},
		{false, false, true, false},
	}

	for i, s := range steps {
		a.ApplyDecision(s.accepted, s.declined, t0.Add(time.Duration(i)*time.Minute))
		if a.AcceptedAt != nil && a.DeclinedAt != nil {
			t.Fatalf("step %d: both timestamps set", i)
		}
		if (a.AcceptedAt != nil) != s.wantAccepted || (a.DeclinedAt != nil) != s.wantDeclined {
			t.Fatalf("step %d: accepted=%v declined=%v", i, a.AcceptedAt, a.DeclinedAt)
		}
	}
}
