package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// minKeyTTL keeps already-expired tokens from being stored without a TTL,
// which Redis would otherwise treat as "never expires".
const minKeyTTL = time.Millisecond

type redisAccessToken struct {
	Token          string    `json:"token"`
	SubjectID      string    `json:"subject_id"`
	SubjectEmail   string    `json:"subject_email"`
	ScopeKind      string    `json:"scope_kind"`
	AssignmentID   string    `json:"scope_assignment_id,omitempty"`
	CourseID       string    `json:"scope_course_id,omitempty"`
	WorkerID       string    `json:"scope_worker_id,omitempty"`
	RedirectTarget string    `json:"redirect_to,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type redisAccessTokenRepository struct {
	client redis.Cmdable
	prefix string
}

// NewRedisAccessTokenRepository stores tokens as JSON values whose key TTL
// matches the token's remaining lifetime.
func NewRedisAccessTokenRepository(client redis.Cmdable, prefix string) AccessTokenRepository {
	return &redisAccessTokenRepository{client: client, prefix: prefix}
}

func (r *redisAccessTokenRepository) key(value string) string {
	return fmt.Sprintf("%s:access_token:%s", r.prefix, value)
}

func (r *redisAccessTokenRepository) Put(ctx context.Context, token *domain.AccessToken) error {
	payload, err := json.Marshal(redisAccessToken{
		Token:          token.Token,
		SubjectID:      token.SubjectID,
		SubjectEmail:   token.SubjectEmail,
		ScopeKind:      string(token.Scope.Kind),
		AssignmentID:   token.Scope.AssignmentID,
		CourseID:       token.Scope.CourseID,
		WorkerID:       token.Scope.WorkerID,
		RedirectTarget: token.RedirectTarget,
		ExpiresAt:      token.ExpiresAt,
		CreatedAt:      token.IssuedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal access token: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl < minKeyTTL {
		ttl = minKeyTTL
	}

	ok, err := r.client.SetNX(ctx, r.key(token.Token), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateToken
	}
	return nil
}

// TakeByValue relies on GETDEL (Redis >= 6.2), which reads and removes the key in one command.
func (r *redisAccessTokenRepository) TakeByValue(ctx context.Context, value string) (*domain.AccessToken, error) {
	raw, err := r.client.GetDel(ctx, r.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("take access token: %w", err)
	}

	var rec redisAccessToken
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode access token: %w", err)
	}
	return &domain.AccessToken{
		Token:        rec.Token,
		SubjectID:    rec.SubjectID,
		SubjectEmail: rec.SubjectEmail,
		Scope: domain.Scope{
			Kind:         domain.ScopeKind(rec.ScopeKind),
			AssignmentID: rec.AssignmentID,
			CourseID:     rec.CourseID,
			WorkerID:     rec.WorkerID,
		},
		RedirectTarget: rec.RedirectTarget,
		IssuedAt:       rec.CreatedAt,
		ExpiresAt:      rec.ExpiresAt,
	}, nil
}

// EvictExpired is a no-op: Redis drops keys when their TTL lapses.
func (r *redisAccessTokenRepository) EvictExpired(context.Context) (int64, error) {
	return 0, nil
}
