package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/link-access-service/internal/domain"
)

func sampleToken() *domain.AccessToken {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.AccessToken{
		Token:          "tok-1",
		SubjectID:      "u1",
		SubjectEmail:   "w@example.com",
		Scope:          domain.AssignmentScope("a1", "c1", "u1"),
		RedirectTarget: "/courses/c1",
		IssuedAt:       now,
		ExpiresAt:      now.Add(time.Hour),
	}
}

func TestAccessTokenPut(t *testing.T) {
	db := &fakeDB{tags: []pgconn.CommandTag{pgconn.NewCommandTag("INSERT 0 1")}}
	repo := NewAccessTokenRepository(db)

	require.NoError(t, repo.Put(context.Background(), sampleToken()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.lastQuery(), "INSERT INTO access_tokens")

	args := db.calls[0].args
	assert.Equal(t, "tok-1", args[0])
	assert.Equal(t, "assignment", args[3])
	assert.Equal(t, strPtr("a1"), args[4])
	assert.Equal(t, strPtr("/courses/c1"), args[7])
}

func TestAccessTokenPutNullsEmptyScope(t *testing.T) {
	db := &fakeDB{}
	repo := NewAccessTokenRepository(db)
	tok := sampleToken()
	tok.Scope = domain.NoScope()
	tok.RedirectTarget = ""

	require.NoError(t, repo.Put(context.Background(), tok))
	args := db.calls[0].args
	assert.Equal(t, "none", args[3])
	assert.Nil(t, args[4])
	assert.Nil(t, args[7])
}

func TestAccessTokenPutDuplicate(t *testing.T) {
	db := &fakeDB{execErr: []error{&pgconn.PgError{Code: "23505"}}}
	repo := NewAccessTokenRepository(db)

	err := repo.Put(context.Background(), sampleToken())
	assert.ErrorIs(t, err, domain.ErrDuplicateToken)
}

func TestAccessTokenPutDBError(t *testing.T) {
	db := &fakeDB{execErr: []error{errors.New("db down")}}
	repo := NewAccessTokenRepository(db)

	err := repo.Put(context.Background(), sampleToken())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicateToken)
	assert.Contains(t, err.Error(), "db down")
}

func TestAccessTokenTakeByValue(t *testing.T) {
	want := sampleToken()
	db := &fakeDB{rows: []fakeRow{{values: []any{
		want.Token, want.SubjectID, want.SubjectEmail, "assignment",
		strPtr("a1"), strPtr("c1"), strPtr("u1"), strPtr("/courses/c1"),
		want.ExpiresAt, want.IssuedAt,
	}}}}
	repo := NewAccessTokenRepository(db)

	got, err := repo.TakeByValue(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Contains(t, db.lastQuery(), "DELETE FROM access_tokens WHERE token=$1 RETURNING")
	assert.Equal(t, []any{"tok-1"}, db.calls[0].args)
}

func TestAccessTokenTakeByValueNullColumns(t *testing.T) {
	now := time.Now()
	db := &fakeDB{rows: []fakeRow{{values: []any{
		"tok-2", "u2", "x@example.com", "none",
		nil, nil, nil, nil,
		now, now,
	}}}}
	repo := NewAccessTokenRepository(db)

	got, err := repo.TakeByValue(context.Background(), "tok-2")
	require.NoError(t, err)
	assert.Equal(t, domain.NoScope(), got.Scope)
	assert.Empty(t, got.RedirectTarget)
}

func TestAccessTokenTakeByValueNotFound(t *testing.T) {
	repo := NewAccessTokenRepository(&fakeDB{})

	_, err := repo.TakeByValue(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestAccessTokenTakeByValueDBError(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{err: errors.New("conn reset")}}}
	repo := NewAccessTokenRepository(db)

	_, err := repo.TakeByValue(context.Background(), "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestAccessTokenEvictExpired(t *testing.T) {
	db := &fakeDB{tags: []pgconn.CommandTag{pgconn.NewCommandTag("DELETE 4")}}
	repo := NewAccessTokenRepository(db)

	n, err := repo.EvictExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	assert.Equal(t, "DELETE FROM access_tokens WHERE expires_at <= NOW()", db.lastQuery())
}
