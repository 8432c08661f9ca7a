package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/identity"
)

func TestEnsureIdentityCreatesOnce(t *testing.T) {
	provider := newFakeProvider()
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := b.EnsureIdentity(ctx, BootstrapSubject{ID: "S1", Email: " Worker@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "S1", first.ID)
	assert.Equal(t, "worker@example.com", first.Email)

	second, err := b.EnsureIdentity(ctx, BootstrapSubject{ID: "S1", Email: "worker@example.com"})
	require.NoError(t, err)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, provider.count())
}

func TestEnsureIdentityDefaultsDisplayName(t *testing.T) {
	provider := newFakeProvider()
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	_, err := b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "S1", Email: "jo.smith@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "jo.smith", provider.byEmail["jo.smith@example.com"].DisplayName)
}

func TestEnsureIdentityConcurrentCallersConverge(t *testing.T) {
	provider := newFakeProvider()
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	const callers = 12
	refs := make([]*domain.IdentityRef, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "S1", Email: "race@example.com"})
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "S1", refs[i].ID)
	}
	assert.Equal(t, 1, provider.count())
}

func TestEnsureIdentityLosesCreateRace(t *testing.T) {
	provider := newFakeProvider()
	// Another request inserts the identity between our existence check and our insert.
	provider.beforeCreate = func(f *fakeProvider, req identity.CreateRequest) {
		if _, ok := f.byEmail[req.Email]; !ok {
			f.addLocked("winner", req.Email, false)
		}
	}
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	ref, err := b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "loser", Email: "race@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "winner", ref.ID)
	assert.Equal(t, 1, provider.count())
}

func TestEnsureIdentityCreateErrorFallsBackToLookup(t *testing.T) {
	provider := newFakeProvider()
	provider.add("existing", "worker@example.com", false)
	provider.createErr = errors.New("unique violation surfaced as error")
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	ref, err := b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "S1", Email: "worker@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "existing", ref.ID)
}

func TestEnsureIdentityFails(t *testing.T) {
	provider := newFakeProvider()
	provider.createErr = errors.New("provider down")
	provider.lookupErr = errors.New("provider down")
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	_, err := b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "S1", Email: "worker@example.com"})
	require.ErrorIs(t, err, domain.ErrBootstrapFailed)
	require.ErrorIs(t, err, provider.lookupErr)

	_, err = b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "S1"})
	require.ErrorIs(t, err, domain.ErrBootstrapFailed)
}

func TestEnsureIdentityResolvesBySubjectIDAfterEmailChange(t *testing.T) {
	provider := newFakeProvider()
	provider.add("U1", "old@example.com", false)
	b := NewIdentityBootstrapper(provider, zaptest.NewLogger(t))

	ref, err := b.EnsureIdentity(context.Background(), BootstrapSubject{ID: "U1", Email: "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "U1", ref.ID)
	assert.Equal(t, "old@example.com", ref.Email)
	assert.Equal(t, 1, provider.count())
}
