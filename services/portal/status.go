package portal

// Submission statuses. Transitions run forward only, except the
// revision_needed loop which returns a submission to review.
const (
	StatusDraft             = "draft"
	StatusSubmitted         = "submitted"
	StatusUnderReview       = "under_review"
	StatusRevisionNeeded    = "revision_needed"
	StatusRevisionSubmitted = "revision_submitted"
	StatusAccepted          = "accepted"
	StatusRejected          = "rejected"
)

var statusTransitions = map[string][]string{
	StatusDraft:             {StatusSubmitted},
	StatusSubmitted:         {StatusUnderReview, StatusRejected},
	StatusUnderReview:       {StatusRevisionNeeded, StatusAccepted, StatusRejected},
	StatusRevisionNeeded:    {StatusRevisionSubmitted},
	StatusRevisionSubmitted: {StatusUnderReview, StatusAccepted, StatusRejected},
	StatusAccepted:          {},
	StatusRejected:          {},
}

// decisionStatuses are the statuses an editor may move a submission to
// through the decision endpoint.
var decisionStatuses = map[string]bool{
	StatusUnderReview:    true,
	StatusRevisionNeeded: true,
	StatusAccepted:       true,
	StatusRejected:       true,
}

func validStatus(status string) bool {
	_, ok := statusTransitions[status]
	return ok
}

func canTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func terminalStatus(status string) bool {
	return status == StatusAccepted || status == StatusRejected
}

// editableStatus reports whether authors may still change the submission's
// content and author list.
func editableStatus(status string) bool {
	return status == StatusDraft || status == StatusRevisionNeeded
}
