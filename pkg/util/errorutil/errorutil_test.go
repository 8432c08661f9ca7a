package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/link-access-service/internal/domain"
)

func TestToDomainErrorHidesRedemptionStage(t *testing.T) {
	causes := []error{
		domain.ErrInvalidOrExpiredToken,
		fmt.Errorf("validating: %w", domain.ErrScopeMismatch),
		domain.ErrBootstrapFailed,
		domain.ErrSessionMintFailed,
	}
	for _, cause := range causes {
		de := ToDomainError(cause)
		assert.Equal(t, "LINK_INVALID", de.Code)
		assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
		assert.Equal(t, LinkDeniedMessage, de.Message)
		assert.NotContains(t, de.Error(), cause.Error())
	}
}

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewConflict("dup", nil)
	assert.Same(t, original, ToDomainError(original))
}

func TestToDomainErrorFallbacks(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.Equal(t, http.StatusNotFound, ToDomainError(domain.ErrAssignmentNotFound).HTTPStatus)

	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Equal(t, "internal server error", de.Message)
}
