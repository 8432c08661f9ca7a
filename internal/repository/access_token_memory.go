package repository

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// MemoryAccessTokenRepository keeps tokens in a ttlcache. It serves
// single-process deployments and tests.
type MemoryAccessTokenRepository struct {
	cache *ttlcache.Cache[string, domain.AccessToken]
}

// NewMemoryAccessTokenRepository creates the store and starts its background cleanup.
// Call Close to stop it.
func NewMemoryAccessTokenRepository() *MemoryAccessTokenRepository {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, domain.AccessToken](),
	)
	go cache.Start()

	return &MemoryAccessTokenRepository{cache: cache}
}

// Put implements AccessTokenRepository.
func (s *MemoryAccessTokenRepository) Put(_ context.Context, token *domain.AccessToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}
	if _, found := s.cache.GetOrSet(token.Token, *token, ttlcache.WithTTL[string, domain.AccessToken](ttl)); found {
		return domain.ErrDuplicateToken
	}
	return nil
}

// TakeByValue implements AccessTokenRepository. GetAndDelete holds the cache
// lock across lookup and removal.
func (s *MemoryAccessTokenRepository) TakeByValue(_ context.Context, value string) (*domain.AccessToken, error) {
	item, found := s.cache.GetAndDelete(value)
	if !found || item == nil {
		return nil, domain.ErrTokenNotFound
	}
	token := item.Value()
	return &token, nil
}

// EvictExpired implements AccessTokenRepository.
func (s *MemoryAccessTokenRepository) EvictExpired(_ context.Context) (int64, error) {
	before := s.cache.Len()
	s.cache.DeleteExpired()
	evicted := before - s.cache.Len()
	if evicted < 0 {
		evicted = 0
	}
	return int64(evicted), nil
}

// Close stops the cleanup goroutine.
func (s *MemoryAccessTokenRepository) Close() {
	s.cache.Stop()
}
