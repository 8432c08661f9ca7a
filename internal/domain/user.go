package domain

import "time"

// Identity is the durable authentication record backing a session.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	// SecretHash is empty until a one-time secret has been rotated in.
	SecretHash string
	// CredentialManaged marks a credential owned by another system
	// (an admin-set password, SSO). The link flow must not overwrite it.
	CredentialManaged bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasSecret reports whether the identity has a usable secret.
func (i *Identity) HasSecret() bool {
	return i.SecretHash != ""
}

// Ref returns the lightweight reference used between bootstrap and session minting.
func (i *Identity) Ref() IdentityRef {
	return IdentityRef{ID: i.ID, Email: i.Email}
}

// IdentityRef points at an existing identity.
type IdentityRef struct {
	ID    string
	Email string
}

// CreateOutcome distinguishes a fresh identity from one that already existed.
type CreateOutcome string

const (
	CreateOutcomeCreated       CreateOutcome = "created"
	CreateOutcomeAlreadyExists CreateOutcome = "already_exists"
)

// CreateIdentityResult is returned by identity providers on create.
// Identity is nil when Outcome is CreateOutcomeAlreadyExists.
type CreateIdentityResult struct {
	Outcome  CreateOutcome
	Identity *Identity
}
