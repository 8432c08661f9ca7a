package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// AssignmentRepository is a read-only view over course assignments owned by
// the training domain.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.AssignmentSnapshot, error)
}

type assignmentRepository struct {
	db DBTX
}

// NewAssignmentRepository returns a Postgres-backed implementation.
func NewAssignmentRepository(db DBTX) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (*domain.AssignmentSnapshot, error) {
	const query = `
        SELECT id, course_id, worker_id, status
        FROM course_assignments WHERE id=$1`

	var (
		snapshot domain.AssignmentSnapshot
		status   string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&snapshot.ID,
		&snapshot.CourseID,
		&snapshot.WorkerID,
		&status,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("select assignment: %w", err)
	}
	snapshot.Status = domain.AssignmentStatus(status)
	return &snapshot, nil
}
