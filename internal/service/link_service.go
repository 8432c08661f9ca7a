package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/config"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/events"
	"github.com/spec-kit/link-access-service/internal/observability"
	"github.com/spec-kit/link-access-service/internal/repository"
)

// maxMintAttempts bounds re-minting after a duplicate token value.
const maxMintAttempts = 3

// LinkService issues access links and redeems them into sessions. Redeem is
// the single entry point of the pipeline consume -> validate -> bootstrap ->
// mint session. Every failure is terminal: by the time most of them are
// detected the token has already been consumed.
type LinkService struct {
	tokens       repository.AccessTokenRepository
	minter       *TokenMinter
	binder       *ResourceBinder
	bootstrapper *IdentityBootstrapper
	sessions     *SessionMinter
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger

	generalTTL    time.Duration
	assignmentTTL time.Duration
	callTimeout   time.Duration
	baseURL       string
	redeemPath    string
	now           func() time.Time
}

// LinkDependencies bundles collaborators for the link service.
type LinkDependencies struct {
	TokenRepo    repository.AccessTokenRepository
	Minter       *TokenMinter
	Binder       *ResourceBinder
	Bootstrapper *IdentityBootstrapper
	Sessions     *SessionMinter
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewLinkService builds the service.
func NewLinkService(cfg config.Config, deps LinkDependencies) *LinkService {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	minter := deps.Minter
	if minter == nil {
		minter = NewTokenMinter(clock)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkService{
		tokens:        deps.TokenRepo,
		minter:        minter,
		binder:        deps.Binder,
		bootstrapper:  deps.Bootstrapper,
		sessions:      deps.Sessions,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        logger,
		generalTTL:    cfg.Links.GeneralTTL(),
		assignmentTTL: cfg.Links.AssignmentTTL(),
		callTimeout:   cfg.Links.CallTimeout(),
		baseURL:       cfg.App.BaseURL,
		redeemPath:    cfg.Links.RedeemPath,
		now:           clock,
	}
}

// IssueLinkRequest asks for a link for one subject.
type IssueLinkRequest struct {
	SubjectID      string
	SubjectEmail   string
	Scope          domain.Scope
	RedirectTarget string
}

// IssuedLink is the composed link. URL embeds the token.
type IssuedLink struct {
	URL       string
	ExpiresAt time.Time
	Scope     domain.Scope
}

// IssueLink mints and stores a token, composes the link and hands it to the
// notification sender.
func (s *LinkService) IssueLink(ctx context.Context, req IssueLinkRequest) (*IssuedLink, error) {
	ttl := s.generalTTL
	if req.Scope.IsAssignment() {
		ttl = s.assignmentTTL
	}
	mintReq := MintRequest{
		SubjectID:      req.SubjectID,
		SubjectEmail:   req.SubjectEmail,
		Scope:          req.Scope,
		RedirectTarget: req.RedirectTarget,
	}

	var token *domain.AccessToken
	for attempt := 1; ; attempt++ {
		minted, err := s.minter.Mint(mintReq, ttl)
		if err != nil {
			return nil, err
		}
		err = s.tokens.Put(ctx, minted)
		if err == nil {
			token = minted
			break
		}
		if !errors.Is(err, domain.ErrDuplicateToken) || attempt >= maxMintAttempts {
			return nil, fmt.Errorf("store access token: %w", err)
		}
		s.logger.Warn("duplicate access token value; re-minting", zap.Int("attempt", attempt))
	}

	link, err := s.composeURL(token.Token)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLinkIssued(string(token.Scope.Kind))
	s.logger.Info("access link issued",
		zap.String("subject_id", token.SubjectID),
		zap.String("scope_kind", string(token.Scope.Kind)),
		zap.String("assignment_id", token.Scope.AssignmentID),
		zap.Time("expires_at", token.ExpiresAt))

	s.publish(ctx, events.EventLinkIssued, token.SubjectID, events.LinkIssuedPayload{
		SubjectEmail: token.SubjectEmail,
		URL:          link,
		ScopeKind:    token.Scope.Kind,
		AssignmentID: token.Scope.AssignmentID,
		CourseID:     token.Scope.CourseID,
		ExpiresAt:    token.ExpiresAt,
	})

	return &IssuedLink{URL: link, ExpiresAt: token.ExpiresAt, Scope: token.Scope}, nil
}

func (s *LinkService) composeURL(token string) (string, error) {
	u, err := url.Parse(s.baseURL + s.redeemPath)
	if err != nil {
		return "", fmt.Errorf("compose link: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redeem consumes the token and returns a session for its subject.
// Failures are *RedemptionError values; callers show one generic message
// regardless of the reason.
func (s *LinkService) Redeem(ctx context.Context, value string) (*Redemption, error) {
	if !auth.WellFormedOpaqueToken(value) {
		return nil, s.fail(ctx, nil, StagePresented, domain.ErrInvalidOrExpiredToken, domain.ErrMalformedToken)
	}

	// Consuming. A failure here, timeouts included, is final: the delete may
	// have committed even if the response was lost.
	callCtx, cancel := s.callContext(ctx)
	token, err := s.tokens.TakeByValue(callCtx, value)
	cancel()
	if err != nil {
		return nil, s.fail(ctx, nil, StageConsuming, domain.ErrInvalidOrExpiredToken, err)
	}

	// Validating. The row may outlive its expiry until eviction runs.
	if token.Expired(s.now()) {
		return nil, s.fail(ctx, token, StageValidating, domain.ErrInvalidOrExpiredToken, domain.ErrTokenExpired)
	}
	callCtx, cancel = s.callContext(ctx)
	bound, err := s.binder.Bind(callCtx, token)
	cancel()
	if err != nil {
		return nil, s.fail(ctx, token, StageValidating, validationReason(err), err)
	}

	callCtx, cancel = s.callContext(ctx)
	ref, err := s.bootstrapper.EnsureIdentity(callCtx, BootstrapSubject{
		ID:    bound.SubjectID,
		Email: token.SubjectEmail,
	})
	cancel()
	if err != nil {
		return nil, s.fail(ctx, token, StageBootstrapping, domain.ErrBootstrapFailed, err)
	}

	callCtx, cancel = s.callContext(ctx)
	session, err := s.sessions.MintSession(callCtx, *ref)
	cancel()
	if err != nil {
		return nil, s.fail(ctx, token, StageSessionMinting, domain.ErrSessionMintFailed, err)
	}

	s.metrics.RecordRedemption("succeeded", string(StageSucceeded))
	s.logger.Info("access link redeemed",
		zap.String("subject_id", token.SubjectID),
		zap.String("identity_id", ref.ID),
		zap.String("scope_kind", string(token.Scope.Kind)),
		zap.String("assignment_id", token.Scope.AssignmentID))
	s.publish(ctx, events.EventLinkRedeemed, session.SubjectID, events.LinkRedeemedPayload{
		ScopeKind:    token.Scope.Kind,
		AssignmentID: token.Scope.AssignmentID,
	})

	return &Redemption{
		Session:        session,
		RedirectTarget: token.RedirectTarget,
		Scope:          token.Scope,
	}, nil
}

func (s *LinkService) fail(ctx context.Context, token *domain.AccessToken, stage Stage, reason, cause error) error {
	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.String("reason", reason.Error()),
		zap.Error(cause),
	}
	var subjectID string
	var scopeKind domain.ScopeKind
	if token != nil {
		subjectID = token.SubjectID
		scopeKind = token.Scope.Kind
		fields = append(fields,
			zap.String("subject_id", token.SubjectID),
			zap.String("scope_kind", string(token.Scope.Kind)),
			zap.String("assignment_id", token.Scope.AssignmentID),
			zap.String("course_id", token.Scope.CourseID),
			zap.String("worker_id", token.Scope.WorkerID))
	}

	// Unknown or reused links are routine; anything after consumption deserves attention.
	if stage == StagePresented || errors.Is(cause, domain.ErrTokenNotFound) {
		s.logger.Info("access link rejected", fields...)
	} else {
		s.logger.Warn("access link redemption failed", fields...)
	}
	s.metrics.RecordRedemption("failed", string(stage))

	if token != nil {
		s.publish(ctx, events.EventLinkRedemptionFailed, subjectID, events.LinkRedemptionFailedPayload{
			Stage:     string(stage),
			Reason:    reason.Error(),
			ScopeKind: scopeKind,
		})
	}
	return &RedemptionError{Stage: stage, Reason: reason, Err: cause}
}

func (s *LinkService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout > 0 {
		return context.WithTimeout(ctx, s.callTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *LinkService) publish(ctx context.Context, eventType events.EventType, subjectID string, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
