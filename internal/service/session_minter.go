package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/identity"
)

// SessionMinter turns an identity into a live session without the user ever
// handling a password: it rotates a one-time secret into the identity and
// immediately authenticates with it. The secret never leaves this type and is
// superseded by the next rotation.
//
// The two provider calls are not atomic. A crash in between leaves an unused
// secret on the identity, which is harmless. Mints for one identity are
// serialized within the process so a concurrent rotation cannot invalidate
// the secret between the two calls. Separate processes redeeming links for
// the same identity at the same instant can still interleave; the loser gets
// domain.ErrSessionMintFailed.
type SessionMinter struct {
	provider  identity.Provider
	newSecret func() (string, error)
	locks     [sessionLockStripes]sync.Mutex
}

const sessionLockStripes = 64

// NewSessionMinter creates the minter.
func NewSessionMinter(provider identity.Provider) *SessionMinter {
	return &SessionMinter{provider: provider, newSecret: auth.NewOpaqueToken}
}

// MintSession fails with domain.ErrSessionMintFailed on any error, including
// an externally managed credential. It never re-creates the identity.
func (m *SessionMinter) MintSession(ctx context.Context, ref domain.IdentityRef) (*domain.Session, error) {
	lock := m.lockFor(ref.ID)
	lock.Lock()
	defer lock.Unlock()

	secret, err := m.newSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: generate secret: %w", domain.ErrSessionMintFailed, err)
	}
	if err := m.provider.RotateSecret(ctx, ref.ID, secret); err != nil {
		return nil, fmt.Errorf("%w: rotate secret: %w", domain.ErrSessionMintFailed, err)
	}
	session, err := m.provider.Authenticate(ctx, ref.Email, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: authenticate: %w", domain.ErrSessionMintFailed, err)
	}
	return session, nil
}

func (m *SessionMinter) lockFor(identityID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))
	return &m.locks[h.Sum32()%sessionLockStripes]
}
