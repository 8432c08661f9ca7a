package domain

import "time"

// ScopeKind identifies what resource, if any, an access token is bound to.
type ScopeKind string

const (
	ScopeKindNone       ScopeKind = "none"
	ScopeKindAssignment ScopeKind = "assignment"
)

// Scope is the resource claim carried by an access token.
type Scope struct {
	Kind         ScopeKind
	AssignmentID string
	CourseID     string
	WorkerID     string
}

// NoScope returns the scope of a general link.
func NoScope() Scope {
	return Scope{Kind: ScopeKindNone}
}

// AssignmentScope returns a scope bound to one course assignment.
func AssignmentScope(assignmentID, courseID, workerID string) Scope {
	return Scope{
		Kind:         ScopeKindAssignment,
		AssignmentID: assignmentID,
		CourseID:     courseID,
		WorkerID:     workerID,
	}
}

// IsAssignment reports whether the scope targets an assignment.
func (s Scope) IsAssignment() bool {
	return s.Kind == ScopeKindAssignment
}

// AccessToken is an opaque, single-use, expiring link credential.
// Rows are never updated in place: they are inserted once and deleted on
// redemption or eviction.
type AccessToken struct {
	Token          string
	SubjectID      string
	SubjectEmail   string
	Scope          Scope
	RedirectTarget string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the token is no longer valid at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Session is the credential pair handed back after a successful redemption.
type Session struct {
	AccessSecret  string
	RefreshSecret string
	SubjectID     string
	ExpiresAt     time.Time
}
