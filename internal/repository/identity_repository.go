package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// IdentityRepository defines persistence access for authentication identities.
// Emails are stored lower-cased and are unique.
type IdentityRepository interface {
	// Create inserts the identity unless its id or email is taken, in which
	// case it reports domain.CreateOutcomeAlreadyExists without error.
	Create(ctx context.Context, identity *domain.Identity) (domain.CreateOutcome, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// SetSecretHash replaces the secret of an identity whose credential is
	// not externally managed.
	SetSecretHash(ctx context.Context, id, hash string) error
}

type identityRepository struct {
	db DBTX
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(db DBTX) IdentityRepository {
	return &identityRepository{db: db}
}

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) (domain.CreateOutcome, error) {
	const query = `
        INSERT INTO identities (id, email, display_name, credential_managed)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT DO NOTHING
        RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		identity.CredentialManaged,
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CreateOutcomeAlreadyExists, nil
		}
		if isUniqueViolation(err) {
			return domain.CreateOutcomeAlreadyExists, nil
		}
		return "", fmt.Errorf("insert identity: %w", err)
	}
	return domain.CreateOutcomeCreated, nil
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	const query = `
        SELECT id, email, display_name, COALESCE(secret_hash, ''), credential_managed, created_at, updated_at
        FROM identities WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	const query = `
        SELECT id, email, display_name, COALESCE(secret_hash, ''), credential_managed, created_at, updated_at
        FROM identities WHERE email=$1`
	return r.scanOne(ctx, query, email)
}

func (r *identityRepository) scanOne(ctx context.Context, query string, arg string) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&identity.SecretHash,
		&identity.CredentialManaged,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("select identity: %w", err)
	}
	return &identity, nil
}

func (r *identityRepository) SetSecretHash(ctx context.Context, id, hash string) error {
	const query = `
        UPDATE identities SET secret_hash=$1, updated_at=NOW()
        WHERE id=$2 AND NOT credential_managed`

	cmd, err := r.db.Exec(ctx, query, hash, id)
	if err != nil {
		return fmt.Errorf("update identity secret: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the identity is gone or its credential is managed elsewhere.
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrCredentialManaged
}
