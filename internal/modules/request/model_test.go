// README: Transition table tests (no database).
package request

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusOpen, StatusQualificationPending, true},
		{StatusQualificationPending, StatusPublished, true},
		{StatusPublished, StatusAccepted, true},
		{StatusAccepted, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		// cancel and archive from every non-terminal state
		{StatusOpen, StatusCancelled, true},
		{StatusQualificationPending, StatusCancelled, true},
		{StatusPublished, StatusCancelled, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusOpen, StatusArchived, true},
		{StatusPublished, StatusArchived, true},
		{StatusInProgress, StatusArchived, true},
		// requalification re-enters matching
		{StatusAccepted, StatusPublished, true},
		{StatusInProgress, StatusPublished, true},
		// republish reopens an archived request on either track
		{StatusArchived, StatusQualificationPending, true},
		{StatusArchived, StatusPublished, true},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusPublished, false},
		{StatusCompleted, StatusArchived, false},
		{StatusCancelled, StatusPublished, false},
		{StatusCancelled, StatusArchived, false},
		// invalid: skipping states
		{StatusOpen, StatusAccepted, false},
		{StatusQualificationPending, StatusAccepted, false},
		{StatusPublished, StatusInProgress, false},
		{StatusPublished, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, false},
		// invalid: archived cannot cancel or complete directly
		{StatusArchived, StatusCancelled, false},
		{StatusArchived, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusOpen, StatusQualificationPending, StatusPublished, StatusAccepted, StatusInProgress, StatusArchived} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}
