package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-jwt"
)

const (
	testSecret   = "test-signing-secret"
	testDomain   = "https://api.example.com"
	testIssuer   = "https://app.example.com"
	testPassword = "correct-horse-battery"
	testAgent    = "test-agent/1.0"
)

var t0 = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: t0}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memRecords struct {
	mu      sync.Mutex
	records map[uuid.UUID]*auth.TokenRecord
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[uuid.UUID]*auth.TokenRecord{}}
}

func (m *memRecords) Create(_ context.Context, class auth.TokenClass, accountID *uuid.UUID, userAgent string) (*auth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &auth.TokenRecord{
		ID:        uuid.New(),
		UID:       uuid.NewString(),
		Class:     class,
		UserAgent: userAgent,
	}
	if accountID != nil {
		id := *accountID
		record.AccountID = &id
	}
	m.records[record.ID] = record
	return record, nil
}

func (m *memRecords) FindByID(_ context.Context, id uuid.UUID) (*auth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (m *memRecords) Delete(_ context.Context, record *auth.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, record.ID)
	return nil
}

func (m *memRecords) DeleteAuthTokens(_ context.Context, accountID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, record := range m.records {
		if record.Class == auth.TokenClassAuth && record.AccountID != nil && *record.AccountID == accountID {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memRecords) ListAuthTokens(_ context.Context, accountID uuid.UUID) ([]*auth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.TokenRecord
	for _, record := range m.records {
		if record.Class == auth.TokenClassAuth && record.AccountID != nil && *record.AccountID == accountID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memRecords) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*auth.Account
	now      func() time.Time
}

func newMemAccounts(now func() time.Time) *memAccounts {
	return &memAccounts{accounts: map[uuid.UUID]*auth.Account{}, now: now}
}

func (m *memAccounts) put(account *auth.Account) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	m.accounts[account.ID] = account
	return account
}

func (m *memAccounts) get(id uuid.UUID) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id]
}

// remove drops the account and leaves its token records behind
func (m *memAccounts) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, id)
}

func (m *memAccounts) find(match func(*auth.Account) bool) *auth.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, account := range m.accounts {
		if match(account) {
			clone := *account
			return &clone
		}
	}
	return nil
}

func (m *memAccounts) FindByID(_ context.Context, id uuid.UUID) (*auth.Account, error) {
	return m.find(func(a *auth.Account) bool { return a.ID == id }), nil
}

func (m *memAccounts) FindByIdentifier(_ context.Context, identifier string) (*auth.Account, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	return m.find(func(a *auth.Account) bool {
		return strings.ToLower(a.Email) == identifier || a.Username == identifier
	}), nil
}

func (m *memAccounts) FindByResetToken(_ context.Context, recordID uuid.UUID) (*auth.Account, error) {
	return m.find(func(a *auth.Account) bool { return a.ResetTokenID != nil && *a.ResetTokenID == recordID }), nil
}

func (m *memAccounts) FindBySignupToken(_ context.Context, recordID uuid.UUID) (*auth.Account, error) {
	return m.find(func(a *auth.Account) bool { return a.SignupTokenID != nil && *a.SignupTokenID == recordID }), nil
}

func (m *memAccounts) update(id uuid.UUID, fn func(*auth.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		fn(account)
	}
	return nil
}

func (m *memAccounts) SetResetToken(_ context.Context, accountID uuid.UUID, recordID *uuid.UUID) error {
	return m.update(accountID, func(a *auth.Account) { a.ResetTokenID = recordID })
}

func (m *memAccounts) SetSignupToken(_ context.Context, accountID uuid.UUID, recordID *uuid.UUID) error {
	return m.update(accountID, func(a *auth.Account) { a.SignupTokenID = recordID })
}

func (m *memAccounts) Activate(_ context.Context, accountID uuid.UUID) error {
	return m.update(accountID, func(a *auth.Account) {
		a.Activated = true
		a.SignupTokenID = nil
	})
}

func (m *memAccounts) ResetPassword(_ context.Context, accountID uuid.UUID, hash string) error {
	return m.update(accountID, func(a *auth.Account) {
		a.PasswordHash = hash
		a.ResetTokenID = nil
	})
}

func (m *memAccounts) TrackAttemptedLogin(_ context.Context, account *auth.Account) error {
	now := m.now()
	return m.update(account.ID, func(a *auth.Account) {
		a.LoginAttempts++
		a.LoginAttemptAt = &now
	})
}

func (m *memAccounts) TrackSuccessfulLogin(_ context.Context, account *auth.Account) error {
	now := m.now()
	return m.update(account.ID, func(a *auth.Account) {
		a.LoginAttempts = 0
		a.LoginAttemptAt = nil
		a.LoggedInAt = &now
	})
}

func (m *memAccounts) Register(_ context.Context, account *auth.Account) (*auth.Account, error) {
	return m.put(account), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	cfg      *auth.Options
	clock    *testClock
	records  *memRecords
	accounts *memAccounts
	auth     *auth.Authenticator
	req      auth.RequestContext
}

func defaultOptions() auth.Options {
	return auth.Options{
		SignerKey:         testSecret,
		SignerDomains:     []string{testDomain},
		Issuer:            testIssuer,
		TokenExpiration:   3600,
		RenewExpiration:   7 * 24 * 3600,
		AnonymousAllowed:  true,
		AnonymousUsername: auth.DefaultAnonymousAccount,
	}
}

func newFixture(t *testing.T, mutate ...func(*auth.Options)) *fixture {
	t.Helper()

	opts := defaultOptions()
	for _, fn := range mutate {
		fn(&opts)
	}

	clock := newTestClock()
	records := newMemRecords()
	accounts := newMemAccounts(clock.Now)

	authenticator := auth.NewAuthenticator(&opts, records, accounts).
		WithClock(clock.Now).
		WithSubAuthenticators(
			auth.NewPasswordAuthenticator(accounts).WithClock(clock.Now),
			auth.NewAnonymousAuthenticator(&opts, accounts),
		)

	return &fixture{
		cfg:      &opts,
		clock:    clock,
		records:  records,
		accounts: accounts,
		auth:     authenticator,
		req:      auth.RequestContext{UserAgent: testAgent},
	}
}

func (f *fixture) addAccount(t *testing.T, email string, activated bool, role auth.UserRole) *auth.Account {
	t.Helper()

	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)

	return f.accounts.put(&auth.Account{
		Email:        email,
		Username:     email,
		FirstName:    "Pepe",
		LastName:     "Rone",
		PasswordHash: hash,
		Role:         role,
		Activated:    activated,
	})
}

func (f *fixture) login(t *testing.T, account *auth.Account) *auth.IssuedToken {
	t.Helper()
	issued, err := f.auth.GenerateToken(context.Background(), f.req, account)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	return issued
}

func (f *fixture) validate(t *testing.T, token string) auth.Outcome {
	t.Helper()
	out, err := f.auth.ValidateToken(context.Background(), token, f.req)
	require.NoError(t, err)
	return out
}
