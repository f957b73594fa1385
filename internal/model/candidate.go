package model

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is a person invited to take a proctored interview.
type Candidate struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Domain is a subject area questions belong to (e.g. "backend", "frontend").
type Domain struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// AccessCode is a single-use code that admits a candidate into an interview.
// The code value is stored bcrypt-hashed; RedeemedAt marks consumption.
type AccessCode struct {
	ID         uuid.UUID  `json:"id"`
	CodeHash   string     `json:"-"`
	Label      string     `json:"label"`
	DomainID   uuid.UUID  `json:"domain_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CandidateLoginRequest is the payload for candidate authentication.
type CandidateLoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name" binding:"required,min=2,max=120"`
	AccessCode string `json:"access_code" binding:"required,min=4,max=40"`
}
