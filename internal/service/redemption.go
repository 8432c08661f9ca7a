package service

import (
	"errors"
	"fmt"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// Stage is a state of the redemption pipeline.
type Stage string

const (
	StagePresented      Stage = "presented"
	StageConsuming      Stage = "consuming"
	StageValidating     Stage = "validating"
	StageBootstrapping  Stage = "bootstrapping"
	StageSessionMinting Stage = "session_minting"
	StageSucceeded      Stage = "succeeded"
)

// Redemption is the result of a successful redemption.
type Redemption struct {
	Session        *domain.Session
	RedirectTarget string
	Scope          domain.Scope
}

// RedemptionError is the terminal Failed state. Reason is one of the
// caller-facing sentinels in domain; Err is the internal cause. errors.Is
// matches either.
type RedemptionError struct {
	Stage  Stage
	Reason error
	Err    error
}

func (e *RedemptionError) Error() string {
	if e.Err != nil && errors.Is(e.Err, e.Reason) {
		return fmt.Sprintf("redeem link at %s: %v", e.Stage, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("redeem link at %s: %v: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("redeem link at %s: %v", e.Stage, e.Reason)
}

func (e *RedemptionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// FailureStage reports the stage a redemption failed at, if err came from Redeem.
func FailureStage(err error) (Stage, bool) {
	var re *RedemptionError
	if errors.As(err, &re) {
		return re.Stage, true
	}
	return "", false
}

// validationReason maps binder failures onto caller-facing reasons. A stale
// resource is reported as a scope mismatch.
func validationReason(err error) error {
	if errors.Is(err, domain.ErrScopeMismatch) || errors.Is(err, domain.ErrStaleResource) {
		return domain.ErrScopeMismatch
	}
	return domain.ErrInvalidOrExpiredToken
}
