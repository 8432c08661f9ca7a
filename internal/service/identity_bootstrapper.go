package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/identity"
)

// BootstrapSubject is the identity a verified token authenticates as.
type BootstrapSubject struct {
	ID          string
	Email       string
	DisplayName string
}

// IdentityBootstrapper ensures exactly one identity exists per email.
// It creates or reads identities and never deletes them.
type IdentityBootstrapper struct {
	provider identity.Provider
	logger   *zap.Logger
}

// NewIdentityBootstrapper creates the bootstrapper.
func NewIdentityBootstrapper(provider identity.Provider, logger *zap.Logger) *IdentityBootstrapper {
	return &IdentityBootstrapper{provider: provider, logger: logger}
}

// EnsureIdentity creates the identity or, when it already exists, resolves it
// by subject id and then by email. Concurrent callers for one email converge
// on the same identity.
func (b *IdentityBootstrapper) EnsureIdentity(ctx context.Context, subject BootstrapSubject) (*domain.IdentityRef, error) {
	email := identity.NormalizeEmail(subject.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: subject email missing", domain.ErrBootstrapFailed)
	}
	displayName := subject.DisplayName
	if displayName == "" {
		displayName = emailLocalPart(email)
	}

	res, createErr := b.provider.CreateIdentity(ctx, identity.CreateRequest{
		ID:          subject.ID,
		Email:       email,
		DisplayName: displayName,
	})
	if createErr == nil && res.Outcome == domain.CreateOutcomeCreated && res.Identity != nil {
		ref := res.Identity.Ref()
		return &ref, nil
	}
	if createErr != nil {
		// The identity may still exist, e.g. a concurrent caller created it
		// before our insert failed; the lookup settles it.
		b.logger.Warn("identity create failed; falling back to lookup",
			zap.String("subject_id", subject.ID),
			zap.Error(createErr))
	}

	existing, lookupErr := b.resolve(ctx, subject.ID, email)
	if lookupErr != nil {
		if createErr != nil {
			return nil, fmt.Errorf("%w: create: %v; lookup: %w", domain.ErrBootstrapFailed, createErr, lookupErr)
		}
		return nil, fmt.Errorf("%w: lookup: %w", domain.ErrBootstrapFailed, lookupErr)
	}
	ref := existing.Ref()
	return &ref, nil
}

// resolve finds the existing identity by subject id first, so a subject whose
// email changed keeps its identity, then by email.
func (b *IdentityBootstrapper) resolve(ctx context.Context, id, email string) (*domain.Identity, error) {
	if id != "" {
		existing, err := b.provider.FindByID(ctx, id)
		if err == nil {
			if existing.Email != email {
				b.logger.Info("identity email differs from link email; keeping identity",
					zap.String("subject_id", id))
			}
			return existing, nil
		}
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, err
		}
	}
	return b.provider.FindByEmail(ctx, email)
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
