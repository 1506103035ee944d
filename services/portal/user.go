package portal

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RoleAuthor = "author"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

func validRole(role string) bool {
	switch role {
	case RoleAuthor, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// User is the public representation of a portal account.
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

// Profile carries the optional public profile attached to a user.
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

// TokenPair is the credential pair returned by login, register, and refresh.
type TokenPair struct {
	Access           string    `json:"access"`
	Refresh          string    `json:"refresh,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
}

// AuthResponse is the shape shared by login, register, and the ORCID callback.
type AuthResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}
