package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"requested to confirmed", StatusRequested, StatusConfirmed, true},
		{"requested to rejected", StatusRequested, StatusRejected, true},
		{"requested to cancelled", StatusRequested, StatusCancelled, true},
		{"requested to checked_in", StatusRequested, StatusCheckedIn, false},
		{"requested to completed", StatusRequested, StatusCompleted, false},
		{"confirmed to checked_in", StatusConfirmed, StatusCheckedIn, true},
		{"confirmed to completed", StatusConfirmed, StatusCompleted, true},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to rejected", StatusConfirmed, StatusRejected, false},
		{"confirmed to requested", StatusConfirmed, StatusRequested, false},
		{"checked_in to completed", StatusCheckedIn, StatusCompleted, true},
		{"checked_in to cancelled", StatusCheckedIn, StatusCancelled, true},
		{"checked_in to confirmed", StatusCheckedIn, StatusConfirmed, false},
		{"completed is terminal", StatusCompleted, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"rejected is terminal", StatusRejected, StatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusCancelled, StatusRejected}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	live := []Status{StatusRequested, StatusConfirmed, StatusCheckedIn}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}

	if Status("bogus").Terminal() {
		t.Error("unknown status must not report terminal")
	}
}

func TestStatusCountsTowardCapacity(t *testing.T) {
	counting := map[Status]bool{
		StatusRequested: false,
		StatusConfirmed: true,
		StatusCheckedIn: true,
		StatusCompleted: false,
		StatusCancelled: false,
		StatusRejected:  false,
	}

	for s, want := range counting {
		if got := s.CountsTowardCapacity(); got != want {
			t.Errorf("CountsTowardCapacity(%s) = %v, want %v", s, got, want)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if !StatusConfirmed.Valid() {
		t.Error("confirmed should be valid")
	}
	if Status("pending").Valid() {
		t.Error("pending is not a booking status")
	}
	if Status("").Valid() {
		t.Error("empty status should not be valid")
	}
}
