// Package identity is the local identity provider backing link sessions.
// It owns credential storage and session issuance; the link flow reaches it
// only through the Provider interface.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/repository"
)

// Provider is the identity authority used by the bootstrapper and session minter.
type Provider interface {
	CreateIdentity(ctx context.Context, req CreateRequest) (domain.CreateIdentityResult, error)
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	RotateSecret(ctx context.Context, identityID, secret string) error
	Authenticate(ctx context.Context, email, secret string) (*domain.Session, error)
}

// CreateRequest describes a new identity. ID may be empty.
type CreateRequest struct {
	ID          string
	Email       string
	DisplayName string
}

// LocalProvider stores identities in Postgres and issues JWT sessions.
type LocalProvider struct {
	identities repository.IdentityRepository
	tokens     *auth.TokenManager
	bcryptCost int
	newID      func() string
}

// NewLocalProvider builds the provider.
func NewLocalProvider(identities repository.IdentityRepository, tokens *auth.TokenManager, bcryptCost int, newID func() string) *LocalProvider {
	return &LocalProvider{
		identities: identities,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		newID:      newID,
	}
}

// NormalizeEmail is the canonical form identities are keyed by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateIdentity inserts the identity, reporting an existing one as a normal outcome.
func (p *LocalProvider) CreateIdentity(ctx context.Context, req CreateRequest) (domain.CreateIdentityResult, error) {
	email := NormalizeEmail(req.Email)
	if email == "" {
		return domain.CreateIdentityResult{}, errors.New("email required")
	}
	id := req.ID
	if id == "" {
		id = p.newID()
	}

	identity := &domain.Identity{
		ID:          id,
		Email:       email,
		DisplayName: req.DisplayName,
	}
	outcome, err := p.identities.Create(ctx, identity)
	if err != nil {
		return domain.CreateIdentityResult{}, err
	}
	if outcome == domain.CreateOutcomeAlreadyExists {
		return domain.CreateIdentityResult{Outcome: outcome}, nil
	}
	return domain.CreateIdentityResult{Outcome: outcome, Identity: identity}, nil
}

// FindByID resolves an identity by its primary key.
func (p *LocalProvider) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return p.identities.GetByID(ctx, id)
}

// FindByEmail resolves an identity by its normalized email.
func (p *LocalProvider) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return p.identities.GetByEmail(ctx, NormalizeEmail(email))
}

// RotateSecret replaces the identity's secret. It fails with
// domain.ErrCredentialManaged for externally managed credentials.
func (p *LocalProvider) RotateSecret(ctx context.Context, identityID, secret string) error {
	hash, err := auth.HashSecret(secret, p.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	return p.identities.SetSecretHash(ctx, identityID, hash)
}

// Authenticate checks the secret and issues a session.
func (p *LocalProvider) Authenticate(ctx context.Context, email, secret string) (*domain.Session, error) {
	identity, err := p.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !identity.HasSecret() {
		return nil, domain.ErrInvalidCredentials
	}
	if err := auth.CompareSecret(identity.SecretHash, secret); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	pair, err := p.tokens.GeneratePair(identity.ID, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &domain.Session{
		AccessSecret:  pair.AccessToken,
		RefreshSecret: pair.RefreshToken,
		SubjectID:     identity.ID,
		ExpiresAt:     pair.AccessExpiresAt,
	}, nil
}
