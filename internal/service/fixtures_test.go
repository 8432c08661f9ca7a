package service

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/link-access-service/internal/config"
	"github.com/spec-kit/link-access-service/internal/domain"
	"github.com/spec-kit/link-access-service/internal/events"
	"github.com/spec-kit/link-access-service/internal/identity"
	"github.com/spec-kit/link-access-service/internal/observability"
	"github.com/spec-kit/link-access-service/internal/repository"
)

// fakeAssignments is a mutable stand-in for the training domain.
type fakeAssignments struct {
	mu   sync.Mutex
	rows map[string]domain.AssignmentSnapshot
	err  error
}

func newFakeAssignments(rows ...domain.AssignmentSnapshot) *fakeAssignments {
	f := &fakeAssignments{rows: map[string]domain.AssignmentSnapshot{}}
	for _, r := range rows {
		f.rows[r.ID] = r
	}
	return f
}

func (f *fakeAssignments) GetByID(_ context.Context, id string) (*domain.AssignmentSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, domain.ErrAssignmentNotFound
	}
	return &row, nil
}

func (f *fakeAssignments) set(row domain.AssignmentSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.ID] = row
}

func (f *fakeAssignments) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
}

// fakeProvider is an in-memory identity authority with failure injection.
type fakeProvider struct {
	mu          sync.Mutex
	byEmail     map[string]*domain.Identity
	secrets     map[string]string
	createCalls int
	rotateCalls int
	authCalls   int
	createErr   error
	lookupErr   error
	authErr     error
	// beforeCreate runs inside CreateIdentity before the existence check,
	// letting tests inject a competing writer.
	beforeCreate func(f *fakeProvider, req identity.CreateRequest)
	// afterRotate runs outside the lock between rotation and authentication.
	afterRotate func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{byEmail: map[string]*domain.Identity{}, secrets: map[string]string{}}
}

func (f *fakeProvider) addLocked(id, email string, managed bool) *domain.Identity {
	identity := &domain.Identity{ID: id, Email: email, CredentialManaged: managed, CreatedAt: time.Now()}
	f.byEmail[email] = identity
	return identity
}

func (f *fakeProvider) add(id, email string, managed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addLocked(id, email, managed)
}

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

func (f *fakeProvider) CreateIdentity(_ context.Context, req identity.CreateRequest) (domain.CreateIdentityResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.beforeCreate != nil {
		f.beforeCreate(f, req)
	}
	if f.createErr != nil {
		return domain.CreateIdentityResult{}, f.createErr
	}
	if _, ok := f.byEmail[req.Email]; ok {
		return domain.CreateIdentityResult{Outcome: domain.CreateOutcomeAlreadyExists}, nil
	}
	if f.findByIDLocked(req.ID) != nil {
		return domain.CreateIdentityResult{Outcome: domain.CreateOutcomeAlreadyExists}, nil
	}
	created := f.addLocked(req.ID, req.Email, false)
	created.DisplayName = req.DisplayName
	cp := *created
	return domain.CreateIdentityResult{Outcome: domain.CreateOutcomeCreated, Identity: &cp}, nil
}

func (f *fakeProvider) findByIDLocked(id string) *domain.Identity {
	for _, identity := range f.byEmail {
		if identity.ID == id {
			return identity
		}
	}
	return nil
}

func (f *fakeProvider) FindByID(_ context.Context, id string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	identity := f.findByIDLocked(id)
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (f *fakeProvider) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	identity, ok := f.byEmail[email]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	cp := *identity
	return &cp, nil
}

func (f *fakeProvider) RotateSecret(_ context.Context, identityID, secret string) error {
	f.mu.Lock()
	f.rotateCalls++
	identity := f.findByIDLocked(identityID)
	if identity == nil {
		f.mu.Unlock()
		return domain.ErrIdentityNotFound
	}
	if identity.CredentialManaged {
		f.mu.Unlock()
		return domain.ErrCredentialManaged
	}
	f.secrets[identityID] = secret
	afterRotate := f.afterRotate
	f.mu.Unlock()

	if afterRotate != nil {
		afterRotate()
	}
	return nil
}

func (f *fakeProvider) Authenticate(_ context.Context, email, secret string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.authErr != nil {
		return nil, f.authErr
	}
	identity, ok := f.byEmail[email]
	if !ok || f.secrets[identity.ID] == "" || f.secrets[identity.ID] != secret {
		return nil, domain.ErrInvalidCredentials
	}
	return &domain.Session{
		AccessSecret:  "access-" + identity.ID,
		RefreshSecret: "refresh-" + identity.ID,
		SubjectID:     identity.ID,
		ExpiresAt:     time.Now().Add(time.Hour),
	}, nil
}

// recordingMailer captures deliveries.
type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Deliver(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

type harness struct {
	svc         *LinkService
	store       repository.AccessTokenRepository
	assignments *fakeAssignments
	provider    *fakeProvider
	mailer      *recordingMailer
	cfg         config.Config
}

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{BaseURL: "https://training.example.com"},
		Links: config.LinksConfig{
			GeneralTTLHours:    720,
			AssignmentTTLHours: 720,
			CallTimeoutSeconds: 2,
			RedeemPath:         "/auth/link",
		},
		Notification: config.NotificationConfig{EmailFrom: "noreply@example.com"},
	}
}

type harnessOption func(*harness, *LinkDependencies)

func withStore(store repository.AccessTokenRepository) harnessOption {
	return func(h *harness, deps *LinkDependencies) {
		h.store = store
		deps.TokenRepo = store
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := repository.NewMemoryAccessTokenRepository()
	t.Cleanup(mem.Close)

	h := &harness{
		store:       mem,
		assignments: newFakeAssignments(),
		provider:    newFakeProvider(),
		mailer:      &recordingMailer{},
		cfg:         testConfig(),
	}
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, h.mailer, logger, h.cfg.Notification).RegisterHandlers()

	deps := LinkDependencies{
		TokenRepo:    mem,
		Binder:       NewResourceBinder(h.assignments),
		Bootstrapper: NewIdentityBootstrapper(h.provider, logger),
		Sessions:     NewSessionMinter(h.provider),
		Dispatcher:   dispatcher,
		Metrics:      observability.NewMetrics("test"),
		Logger:       logger,
	}
	for _, opt := range opts {
		opt(h, &deps)
	}
	h.svc = NewLinkService(h.cfg, deps)
	return h
}

func tokenFromURL(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

// mapStore keeps rows until taken, expired or not, like a table between
// eviction sweeps.
type mapStore struct {
	mu   sync.Mutex
	rows map[string]domain.AccessToken
}

func newMapStore() *mapStore {
	return &mapStore{rows: map[string]domain.AccessToken{}}
}

func (s *mapStore) Put(_ context.Context, token *domain.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[token.Token]; ok {
		return domain.ErrDuplicateToken
	}
	s.rows[token.Token] = *token
	return nil
}

func (s *mapStore) TakeByValue(_ context.Context, value string) (*domain.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.rows[value]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	delete(s.rows, value)
	return &token, nil
}

func (s *mapStore) EvictExpired(context.Context) (int64, error) { return 0, nil }

func (s *mapStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
