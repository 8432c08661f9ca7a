package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/domain"
)

// MintRequest describes who a link authenticates and what it unlocks.
type MintRequest struct {
	SubjectID      string
	SubjectEmail   string
	Scope          domain.Scope
	RedirectTarget string
}

// TokenMinter produces access tokens. It does not persist them.
type TokenMinter struct {
	now      func() time.Time
	newToken func() (string, error)
}

// NewTokenMinter returns a minter using clock, or time.Now when clock is nil.
func NewTokenMinter(clock func() time.Time) *TokenMinter {
	if clock == nil {
		clock = time.Now
	}
	return &TokenMinter{now: clock, newToken: auth.NewOpaqueToken}
}

// Mint validates the request and returns a fresh token valid for ttl.
func (m *TokenMinter) Mint(req MintRequest, ttl time.Duration) (*domain.AccessToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidMintArgument)
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, fmt.Errorf("%w: subject id required", domain.ErrInvalidMintArgument)
	}
	if strings.TrimSpace(req.SubjectEmail) == "" {
		return nil, fmt.Errorf("%w: subject email required", domain.ErrInvalidMintArgument)
	}

	scope := req.Scope
	switch scope.Kind {
	case "", domain.ScopeKindNone:
		scope = domain.NoScope()
	case domain.ScopeKindAssignment:
		if scope.AssignmentID == "" || scope.CourseID == "" || scope.WorkerID == "" {
			return nil, fmt.Errorf("%w: assignment scope needs assignment, course and worker ids", domain.ErrInvalidMintArgument)
		}
	default:
		return nil, fmt.Errorf("%w: unknown scope kind %q", domain.ErrInvalidMintArgument, scope.Kind)
	}

	value, err := m.newToken()
	if err != nil {
		return nil, err
	}

	issuedAt := m.now().UTC()
	return &domain.AccessToken{
		Token:          value,
		SubjectID:      req.SubjectID,
		SubjectEmail:   req.SubjectEmail,
		Scope:          scope,
		RedirectTarget: req.RedirectTarget,
		IssuedAt:       issuedAt,
		ExpiresAt:      issuedAt.Add(ttl),
	}, nil
}
