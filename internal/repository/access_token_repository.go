package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// AccessTokenRepository is the durable store for outstanding access tokens.
// It is the only writer of token rows.
type AccessTokenRepository interface {
	// Put inserts a new token. It returns domain.ErrDuplicateToken when the
	// value is already present.
	Put(ctx context.Context, token *domain.AccessToken) error
	// TakeByValue atomically fetches and deletes the token. Concurrent callers
	// racing on one value see exactly one success; the rest get
	// domain.ErrTokenNotFound.
	TakeByValue(ctx context.Context, value string) (*domain.AccessToken, error)
	// EvictExpired removes tokens past their expiry and reports how many were removed.
	EvictExpired(ctx context.Context) (int64, error)
}

type accessTokenRepository struct {
	db DBTX
}

// NewAccessTokenRepository returns a Postgres-backed implementation.
func NewAccessTokenRepository(db DBTX) AccessTokenRepository {
	return &accessTokenRepository{db: db}
}

func (r *accessTokenRepository) Put(ctx context.Context, token *domain.AccessToken) error {
	const query = `
        INSERT INTO access_tokens (token, subject_id, subject_email, scope_kind,
            scope_assignment_id, scope_course_id, scope_worker_id, redirect_to, expires_at, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.db.Exec(ctx, query,
		token.Token,
		token.SubjectID,
		token.SubjectEmail,
		string(token.Scope.Kind),
		nullString(token.Scope.AssignmentID),
		nullString(token.Scope.CourseID),
		nullString(token.Scope.WorkerID),
		nullString(token.RedirectTarget),
		token.ExpiresAt,
		token.IssuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateToken
		}
		return fmt.Errorf("insert access token: %w", err)
	}
	return nil
}

// TakeByValue is a single DELETE ... RETURNING so the row is observed by at
// most one transaction.
func (r *accessTokenRepository) TakeByValue(ctx context.Context, value string) (*domain.AccessToken, error) {
	const query = `
        DELETE FROM access_tokens WHERE token=$1
        RETURNING token, subject_id, subject_email, scope_kind,
            scope_assignment_id, scope_course_id, scope_worker_id, redirect_to, expires_at, created_at`

	var (
		token                            domain.AccessToken
		scopeKind                        string
		assignmentID, courseID, workerID *string
		redirectTo                       *string
		expiresAt, createdAt             time.Time
	)
	if err := r.db.QueryRow(ctx, query, value).Scan(
		&token.Token,
		&token.SubjectID,
		&token.SubjectEmail,
		&scopeKind,
		&assignmentID,
		&courseID,
		&workerID,
		&redirectTo,
		&expiresAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("take access token: %w", err)
	}

	token.Scope = domain.Scope{
		Kind:         domain.ScopeKind(scopeKind),
		AssignmentID: deref(assignmentID),
		CourseID:     deref(courseID),
		WorkerID:     deref(workerID),
	}
	token.RedirectTarget = deref(redirectTo)
	token.ExpiresAt = expiresAt
	token.IssuedAt = createdAt
	return &token, nil
}

func (r *accessTokenRepository) EvictExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM access_tokens WHERE expires_at <= NOW()`
	cmd, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("evict expired tokens: %w", err)
	}
	return cmd.RowsAffected(), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
