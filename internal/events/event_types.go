package events

import (
	"time"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLinkIssued           EventType = "link_issued"
	EventLinkRedeemed         EventType = "link_redeemed"
	EventLinkRedemptionFailed EventType = "link_redemption_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// LinkIssuedPayload carries the link to deliver. URL embeds the token and must
// be handed to the sender verbatim and never logged.
type LinkIssuedPayload struct {
	SubjectEmail string           `json:"subject_email"`
	URL          string           `json:"-"`
	ScopeKind    domain.ScopeKind `json:"scope_kind"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	CourseID     string           `json:"course_id,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// LinkRedeemedPayload payload.
type LinkRedeemedPayload struct {
	ScopeKind    domain.ScopeKind `json:"scope_kind"`
	AssignmentID string           `json:"assignment_id,omitempty"`
}

// LinkRedemptionFailedPayload payload. Stage is for operators only.
type LinkRedemptionFailedPayload struct {
	Stage     string           `json:"stage"`
	Reason    string           `json:"reason"`
	ScopeKind domain.ScopeKind `json:"scope_kind,omitempty"`
}
