package portal

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{name: "draft to submitted", from: StatusDraft, to: StatusSubmitted, want: true},
		{name: "submitted to under review", from: StatusSubmitted, to: StatusUnderReview, want: true},
		{name: "submitted straight to rejected", from: StatusSubmitted, to: StatusRejected, want: true},
		{name: "under review to revision needed", from: StatusUnderReview, to: StatusRevisionNeeded, want: true},
		{name: "under review to accepted", from: StatusUnderReview, to: StatusAccepted, want: true},
		{name: "revision needed to revision submitted", from: StatusRevisionNeeded, to: StatusRevisionSubmitted, want: true},
		{name: "revision submitted back to review", from: StatusRevisionSubmitted, to: StatusUnderReview, want: true},
		{name: "revision submitted to accepted", from: StatusRevisionSubmitted, to: StatusAccepted, want: true},

		{name: "draft cannot skip to review", from: StatusDraft, to: StatusUnderReview, want: false},
		{name: "draft cannot be decided", from: StatusDraft, to: StatusAccepted, want: false},
		{name: "no going back to draft", from: StatusSubmitted, to: StatusDraft, want: false},
		{name: "accepted is terminal", from: StatusAccepted, to: StatusUnderReview, want: false},
		{name: "rejected is terminal", from: StatusRejected, to: StatusSubmitted, want: false},
		{name: "revision needed cannot self-accept", from: StatusRevisionNeeded, to: StatusAccepted, want: false},
		{name: "unknown from", from: "archived", to: StatusSubmitted, want: false},
		{name: "unknown to", from: StatusDraft, to: "archived", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("canTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, status := range []string{
		StatusDraft, StatusSubmitted, StatusUnderReview,
		StatusRevisionNeeded, StatusRevisionSubmitted, StatusAccepted, StatusRejected,
	} {
		if !validStatus(status) {
			t.Fatalf("validStatus(%q) = false, want true", status)
		}
	}
	for _, status := range []string{"", "DRAFT", "archived", "in_review"} {
		if validStatus(status) {
			t.Fatalf("validStatus(%q) = true, want false", status)
		}
	}
}

func TestTerminalAndEditableStatus(t *testing.T) {
	if !terminalStatus(StatusAccepted) || !terminalStatus(StatusRejected) {
		t.Fatal("accepted and rejected must be terminal")
	}
	if terminalStatus(StatusUnderReview) {
		t.Fatal("under_review must not be terminal")
	}

	if !editableStatus(StatusDraft) || !editableStatus(StatusRevisionNeeded) {
		t.Fatal("draft and revision_needed must be editable")
	}
	for _, status := range []string{StatusSubmitted, StatusUnderReview, StatusRevisionSubmitted, StatusAccepted, StatusRejected} {
		if editableStatus(status) {
			t.Fatalf("editableStatus(%q) = true, want false", status)
		}
	}
}

func TestDecisionStatuses(t *testing.T) {
	for status, want := range map[string]bool{
		StatusUnderReview:    true,
		StatusRevisionNeeded: true,
		StatusAccepted:       true,
		StatusRejected:       true,
		StatusDraft:          false,
		StatusSubmitted:      false,
	} {
		if decisionStatuses[status] != want {
			t.Fatalf("decisionStatuses[%q] = %v, want %v", status, decisionStatuses[status], want)
		}
	}
}
