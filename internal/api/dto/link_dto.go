package dto

import "time"

// ScopeDTO names the resource a link is bound to.
type ScopeDTO struct {
	Kind         string `json:"kind"`
	AssignmentID string `json:"assignment_id,omitempty"`
	CourseID     string `json:"course_id,omitempty"`
	WorkerID     string `json:"worker_id,omitempty"`
}

// IssueLinkRequest payload for POST /links.
type IssueLinkRequest struct {
	SubjectID    string    `json:"subject_id"`
	SubjectEmail string    `json:"subject_email"`
	Scope        *ScopeDTO `json:"scope,omitempty"`
	RedirectTo   string    `json:"redirect_to,omitempty"`
}

// IssueLinkResponse is returned to the issuing system.
type IssueLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionResponse carries the minted session credentials.
type SessionResponse struct {
	SubjectID    string    `json:"subject_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RedeemResponse is returned for a redeemed link.
type RedeemResponse struct {
	Session    SessionResponse `json:"session"`
	RedirectTo string          `json:"redirect_to,omitempty"`
	Scope      ScopeDTO        `json:"scope"`
}

// IdentityResponse summarizes the authenticated identity.
type IdentityResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
