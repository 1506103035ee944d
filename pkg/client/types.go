package client

import (
	"time"

	"github.com/google/uuid"
)

// Wire types mirroring the portal's public JSON shapes. The client keeps its
// own copies so that embedding it never drags server machinery into the
// import graph.

// User is a portal account as returned by the API.
type User struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Affiliation   string     `json:"affiliation"`
	Role          string     `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	OrcidID       string     `json:"orcid_id,omitempty"`
	OrcidVerified bool       `json:"orcid_verified"`
	CanSubmit     bool       `json:"can_submit"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Profile is the optional public profile attached to a user.
type Profile struct {
	UserID            uuid.UUID `json:"user_id"`
	Bio               string    `json:"bio"`
	AvatarURL         string    `json:"avatar_url"`
	Website           string    `json:"website"`
	Country           string    `json:"country"`
	Degrees           string    `json:"degrees"`
	ResearchInterests []string  `json:"research_interests"`
	Expertise         []string  `json:"expertise"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ProfileCompletion reports how much of the profile is filled in and
// which fields are still missing.
type ProfileCompletion struct {
	Percent int      `json:"percent"`
	Missing []string `json:"missing"`
}

// ProfileView pairs a profile with its completion summary.
type ProfileView struct {
	Profile    Profile           `json:"profile"`
	Completion ProfileCompletion `json:"completion"`
}

// AuthResponse is the shape shared by login, register, and the ORCID
// callback when it signs a user in.
type AuthResponse struct {
	User   User   `json:"user"`
	Tokens Tokens `json:"tokens"`
}

// Submission is one manuscript submission.
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

// Revision is one round of the revise-and-resubmit loop.
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

// ManuscriptFile is one uploaded attachment on a submission.
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

// SubmissionDetail is a submission with its ordered authors, files, and
// revision history.
type SubmissionDetail struct {
	Submission Submission       `json:"submission"`
	Authors    []Authorship     `json:"authors"`
	Files      []ManuscriptFile `json:"files"`
	Revisions  []Revision       `json:"revisions"`
}

// SubmissionList is one page of submissions.
type SubmissionList struct {
	Submissions []Submission `json:"submissions"`
	Total       int64        `json:"total"`
	Page        int          `json:"page"`
	PerPage     int          `json:"per_page"`
}

// Me pairs the current user with their profile.
type Me struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}

// Upload is a presigned upload slot in object storage.
type Upload struct {
	UploadURL  string    `json:"upload_url"`
	StorageKey string    `json:"storage_key"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Download is a presigned download link for an attachment.
type Download struct {
	DownloadURL string    `json:"download_url"`
	Filename    string    `json:"filename"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Receipt is a signed submission receipt.
type Receipt struct {
	ReceiptID string    `json:"receipt_id"`
	Receipt   string    `json:"receipt"`
	Signature string    `json:"signature"`
	PublicKey string    `json:"public_key"`
	IssuedAt  time.Time `json:"issued_at"`
}
