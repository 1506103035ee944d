package portal

import (
	"time"

	"github.com/google/uuid"
)

// Submission is the public representation of a manuscript submission.
type Submission struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     uuid.UUID      `json:"owner_id"`
	Title       string         `json:"title"`
	Abstract    string         `json:"abstract"`
	Keywords    []string       `json:"keywords"`
	Section     string         `json:"section"`
	Status      string         `json:"status"`
	Metadata    map[string]any `json:"metadata"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Authorship is one ordered author entry on a submission.
type Authorship struct {
	ID              uuid.UUID  `json:"id"`
	SubmissionID    uuid.UUID  `json:"submission_id"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	Affiliation     string     `json:"affiliation"`
	OrcidID         string     `json:"orcid_id,omitempty"`
	Position        int        `json:"position"`
	IsCorresponding bool       `json:"is_corresponding"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Revision records one round of the revise-and-resubmit loop.
type Revision struct {
	ID           uuid.UUID  `json:"id"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	Round        int        `json:"round"`
	DecisionNote string     `json:"decision_note"`
	ResponseNote string     `json:"response_note"`
	CreatedByID  *uuid.UUID `json:"created_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ManuscriptFile describes one uploaded attachment on a submission.
type ManuscriptFile struct {
	ID           uuid.UUID  `json:"id"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	RevisionID   *uuid.UUID `json:"revision_id,omitempty"`
	Name         string     `json:"name"`
	StorageKey   string     `json:"storage_key"`
	Kind         string     `json:"kind"`
	Size         int64      `json:"size"`
	ContentType  string     `json:"content_type"`
	SHA256       string     `json:"sha256,omitempty"`
	Position     int        `json:"position"`
	UploadedByID *uuid.UUID `json:"uploaded_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExtractionTask tracks one queued metadata-extraction job.
type ExtractionTask struct {
	ID           uuid.UUID      `json:"id"`
	SubmissionID *uuid.UUID     `json:"submission_id,omitempty"`
	OwnerID      uuid.UUID      `json:"owner_id"`
	StorageKey   string         `json:"storage_key"`
	State        string         `json:"state"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	EnqueuedAt   time.Time      `json:"enqueued_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}
