package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/repository"
)

// BoundContext is what a validated token grants.
type BoundContext struct {
	SubjectID  string
	Assignment *domain.AssignmentSnapshot
}

// ResourceBinder checks a token's scope against the live domain record.
type ResourceBinder struct {
	assignments repository.AssignmentRepository
}

// NewResourceBinder creates the binder.
func NewResourceBinder(assignments repository.AssignmentRepository) *ResourceBinder {
	return &ResourceBinder{assignments: assignments}
}

// Bind returns domain.ErrStaleResource when the assignment is gone and
// domain.ErrScopeMismatch when it now belongs to another course or worker.
func (b *ResourceBinder) Bind(ctx context.Context, token *domain.AccessToken) (*BoundContext, error) {
	switch token.Scope.Kind {
	case domain.ScopeKindNone:
		return &BoundContext{SubjectID: token.SubjectID}, nil
	case domain.ScopeKindAssignment:
	default:
		return nil, fmt.Errorf("%w: unknown scope kind %q", domain.ErrScopeMismatch, token.Scope.Kind)
	}

	snapshot, err := b.assignments.GetByID(ctx, token.Scope.AssignmentID)
	if err != nil {
		if errors.Is(err, domain.ErrAssignmentNotFound) {
			return nil, fmt.Errorf("%w: assignment %s", domain.ErrStaleResource, token.Scope.AssignmentID)
		}
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if snapshot.CourseID != token.Scope.CourseID {
		return nil, fmt.Errorf("%w: assignment %s course changed", domain.ErrScopeMismatch, snapshot.ID)
	}
	if snapshot.WorkerID != token.Scope.WorkerID {
		return nil, fmt.Errorf("%w: assignment %s reassigned", domain.ErrScopeMismatch, snapshot.ID)
	}
	return &BoundContext{SubjectID: token.SubjectID, Assignment: snapshot}, nil
}
