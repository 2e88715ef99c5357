package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kasirpos.org/internal/audit"
)

type stubAccounts struct {
	createFn         func(context.Context, *Account) error
	findByUsernameFn func(context.Context, string) (*Account, error)
}

func (s *stubAccounts) Create(ctx context.Context, account *Account) error {
	if s.createFn != nil {
		return s.createFn(ctx, account)
	}
	account.ID = 1
	return nil
}

func (s *stubAccounts) Find(context.Context, int64) (*Account, error) { return nil, ErrNotFound }

func (s *stubAccounts) FindByUsername(ctx context.Context, username string) (*Account, error) {
	if s.findByUsernameFn != nil {
		return s.findByUsernameFn(ctx, username)
	}
	return nil, ErrNotFound
}

func (s *stubAccounts) List(context.Context) ([]*Account, error)           { return nil, nil }
func (s *stubAccounts) Update(context.Context, int64, AccountUpdate) error { return nil }
func (s *stubAccounts) SoftDelete(context.Context, int64) error            { return nil }

type stubRoles struct {
	rolesOfFn    func(context.Context, int64) ([]RoleID, error)
	assignFn     func(context.Context, int64, RoleID) error
	replaceAllFn func(context.Context, int64, []RoleID) error
}

func (s *stubRoles) List(context.Context) ([]Role, error)       { return nil, nil }
func (s *stubRoles) Find(context.Context, RoleID) (Role, error) { return Role{}, ErrNotFound }

func (s *stubRoles) RolesOf(ctx context.Context, accountID int64) ([]RoleID, error) {
	if s.rolesOfFn != nil {
		return s.rolesOfFn(ctx, accountID)
	}
	return nil, nil
}

func (s *stubRoles) ReplaceAll(ctx context.Context, accountID int64, roleIDs []RoleID) error {
	if s.replaceAllFn != nil {
		return s.replaceAllFn(ctx, accountID, roleIDs)
	}
	return nil
}

func (s *stubRoles) Assign(ctx context.Context, accountID int64, roleID RoleID) error {
	if s.assignFn != nil {
		return s.assignFn(ctx, accountID, roleID)
	}
	return nil
}

func (s *stubRoles) Remove(context.Context, int64, RoleID) error { return nil }

type stubAttempts struct {
	recordFailureFn func(context.Context, int64, int, time.Time) (FailureResult, error)
	resetFn         func(context.Context, int64) error
}

func (s *stubAttempts) RecordFailure(ctx context.Context, accountID int64, threshold int, lockedUntil time.Time) (FailureResult, error) {
	if s.recordFailureFn != nil {
		return s.recordFailureFn(ctx, accountID, threshold, lockedUntil)
	}
	return FailureResult{Attempts: 1}, nil
}

func (s *stubAttempts) Reset(ctx context.Context, accountID int64) error {
	if s.resetFn != nil {
		return s.resetFn(ctx, accountID)
	}
	return nil
}

func (s *stubAttempts) Get(context.Context, int64) (*LoginAttempt, error) { return nil, ErrNotFound }

type stubLocks struct {
	activeFn         func(context.Context, int64) (*LockEpisode, error)
	releaseExpiredFn func(context.Context, int64, time.Time) (bool, error)
	unlockFn         func(context.Context, int64) error
}

func (s *stubLocks) Active(ctx context.Context, accountID int64) (*LockEpisode, error) {
	if s.activeFn != nil {
		return s.activeFn(ctx, accountID)
	}
	return nil, nil
}

func (s *stubLocks) ReleaseExpired(ctx context.Context, accountID int64, now time.Time) (bool, error) {
	if s.releaseExpiredFn != nil {
		return s.releaseExpiredFn(ctx, accountID, now)
	}
	return false, nil
}

func (s *stubLocks) Unlock(ctx context.Context, accountID int64) error {
	if s.unlockFn != nil {
		return s.unlockFn(ctx, accountID)
	}
	return nil
}

func (s *stubLocks) ListActive(context.Context) ([]LockEpisode, error) { return nil, nil }

type stubStore struct {
	accounts stubAccounts
	roles    stubRoles
	attempts stubAttempts
	locks    stubLocks
}

func (s *stubStore) Accounts(context.Context) AccountStore { return &s.accounts }
func (s *stubStore) Roles(context.Context) RoleStore       { return &s.roles }
func (s *stubStore) Attempts(context.Context) AttemptStore { return &s.attempts }
func (s *stubStore) Locks(context.Context) LockStore       { return &s.locks }

// recordingSink captures emitted audit actions.
type recordingSink struct {
	mu      sync.Mutex
	actions []string
}

func (r *recordingSink) Emit(_ context.Context, _ int64, action string, _ audit.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
}

func (r *recordingSink) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.actions) == 0 {
		return ""
	}
	return r.actions[len(r.actions)-1]
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func newTestService(t *testing.T, store Store, sink audit.Sink, opts ...ServiceOption) *Service {
	t.Helper()
	tokens, err := NewTokenIssuer("test-secret", "kasirpos-test")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	opts = append([]ServiceOption{WithBcryptCost(bcrypt.MinCost)}, opts...)
	svc, err := NewService(store, tokens, sink, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestLoginValidatesInput(t *testing.T) {
	svc := newTestService(t, &stubStore{}, nil)
	for _, tc := range []struct{ username, password string }{
		{"", "secret"},
		{"   ", "secret"},
		{"budi", ""},
	} {
		if _, err := svc.Login(context.Background(), tc.username, tc.password, audit.Context{}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("login(%q, %q): expected ErrInvalidInput, got %v", tc.username, tc.password, err)
		}
	}
}

func TestLoginUnknownUser(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, &stubStore{}, sink)

	_, err := svc.Login(context.Background(), "ghost", "whatever", audit.Context{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if sink.last() != "auth.login.unknown_user" {
		t.Fatalf("unexpected audit action: %q", sink.last())
	}
}

func TestLoginDeniedWhileLocked(t *testing.T) {
	now := time.Now()
	until := now.Add(10 * time.Minute)
	recordCalled := false

	store := &stubStore{}
	store.accounts.findByUsernameFn = func(_ context.Context, _ string) (*Account, error) {
		return &Account{ID: 9, Username: "budi", PasswordHash: mustHash(t, "secret")}, nil
	}
	store.locks.activeFn = func(_ context.Context, _ int64) (*LockEpisode, error) {
		return &LockEpisode{AccountID: 9, IsLocked: true, LockedUntil: until}, nil
	}
	store.attempts.recordFailureFn = func(context.Context, int64, int, time.Time) (FailureResult, error) {
		recordCalled = true
		return FailureResult{}, nil
	}

	sink := &recordingSink{}
	svc := newTestService(t, store, sink, WithClock(func() time.Time { return now }))

	// Even the correct password is refused while the lock holds.
	_, err := svc.Login(context.Background(), "budi", "secret", audit.Context{})
	le, ok := IsLocked(err)
	if !ok {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if !le.LockedUntil.Equal(until) {
		t.Fatalf("unexpected locked_until: %v", le.LockedUntil)
	}
	if le.Opened {
		t.Fatal("deny on an existing lock must not report Opened")
	}
	if recordCalled {
		t.Fatal("attempt counter must not move while locked")
	}
	if sink.last() != "auth.login.denied_locked" {
		t.Fatalf("unexpected audit action: %q", sink.last())
	}
}

func TestLoginReleasesExpiredLock(t *testing.T) {
	now := time.Now()
	released := false

	store := &stubStore{}
	store.accounts.findByUsernameFn = func(_ context.Context, _ string) (*Account, error) {
		return &Account{ID: 9, Username: "budi", PasswordHash: mustHash(t, "secret")}, nil
	}
	store.locks.activeFn = func(_ context.Context, _ int64) (*LockEpisode, error) {
		return &LockEpisode{AccountID: 9, IsLocked: true, LockedUntil: now.Add(-time.Minute)}, nil
	}
	store.locks.releaseExpiredFn = func(context.Context, int64, time.Time) (bool, error) {
		released = true
		return true, nil
	}
	store.roles.rolesOfFn = func(context.Context, int64) ([]RoleID, error) {
		return []RoleID{RoleKasir}, nil
	}

	svc := newTestService(t, store, nil, WithClock(func() time.Time { return now }))

	res, err := svc.Login(context.Background(), "budi", "secret", audit.Context{})
	if err != nil {
		t.Fatalf("Login after expiry: %v", err)
	}
	if !released {
		t.Fatal("expected the expired lock to be released")
	}
	if res.Token == "" {
		t.Fatal("expected a token")
	}
}

func TestLoginWrongPasswordCountsFailure(t *testing.T) {
	store := &stubStore{}
	store.accounts.findByUsernameFn = func(_ context.Context, _ string) (*Account, error) {
		return &Account{ID: 9, Username: "budi", PasswordHash: mustHash(t, "secret")}, nil
	}
	var gotThreshold int
	store.attempts.recordFailureFn = func(_ context.Context, _ int64, threshold int, _ time.Time) (FailureResult, error) {
		gotThreshold = threshold
		return FailureResult{Attempts: 3}, nil
	}

	sink := &recordingSink{}
	svc := newTestService(t, store, sink)

	_, err := svc.Login(context.Background(), "budi", "nope", audit.Context{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if gotThreshold != 5 {
		t.Fatalf("expected default threshold 5, got %d", gotThreshold)
	}
	if sink.last() != "auth.login.wrong_password" {
		t.Fatalf("unexpected audit action: %q", sink.last())
	}
}

func TestLoginThresholdOpensLock(t *testing.T) {
	now := time.Now()
	store := &stubStore{}
	store.accounts.findByUsernameFn = func(_ context.Context, _ string) (*Account, error) {
		return &Account{ID: 9, Username: "budi", PasswordHash: mustHash(t, "secret")}, nil
	}
	var gotLockedUntil time.Time
	store.attempts.recordFailureFn = func(_ context.Context, _ int64, _ int, lockedUntil time.Time) (FailureResult, error) {
		gotLockedUntil = lockedUntil
		return FailureResult{Attempts: 0, LockTriggered: true}, nil
	}

	sink := &recordingSink{}
	svc := newTestService(t, store, sink, WithClock(func() time.Time { return now }))

	_, err := svc.Login(context.Background(), "budi", "nope", audit.Context{})
	le, ok := IsLocked(err)
	if !ok {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if !le.Opened {
		t.Fatal("threshold failure must report Opened")
	}
	want := now.Add(30 * time.Minute)
	if !le.LockedUntil.Equal(want) || !gotLockedUntil.Equal(want) {
		t.Fatalf("unexpected locked_until: %v (store saw %v)", le.LockedUntil, gotLockedUntil)
	}
	if sink.last() != "auth.login.locked" {
		t.Fatalf("unexpected audit action: %q", sink.last())
	}
}

func TestLoginSuccessResetsCounterAndSnapshotsRoles(t *testing.T) {
	store := &stubStore{}
	store.accounts.findByUsernameFn = func(_ context.Context, _ string) (*Account, error) {
		return &Account{ID: 9, Username: "budi", PasswordHash: mustHash(t, "secret")}, nil
	}
	resetCalled := false
	store.attempts.resetFn = func(context.Context, int64) error {
		resetCalled = true
		return nil
	}
	store.roles.rolesOfFn = func(context.Context, int64) ([]RoleID, error) {
		return []RoleID{RoleKasir, RoleOwner}, nil
	}

	sink := &recordingSink{}
	svc := newTestService(t, store, sink)

	res, err := svc.Login(context.Background(), "budi", "secret", audit.Context{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !resetCalled {
		t.Fatal("expected the attempt counter to be reset")
	}
	if sink.last() != "auth.login.ok" {
		t.Fatalf("unexpected audit action: %q", sink.last())
	}

	claims, err := svc.tokens.ParseAndValidate(res.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.ID != 9 || claims.Username != "budi" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != RoleKasir || claims.Roles[1] != RoleOwner {
		t.Fatalf("unexpected role snapshot: %v", claims.Roles)
	}
}

func TestRegisterAdminAssignsAdminRole(t *testing.T) {
	store := &stubStore{}
	var assigned RoleID
	store.roles.assignFn = func(_ context.Context, _ int64, roleID RoleID) error {
		assigned = roleID
		return nil
	}

	svc := newTestService(t, store, nil)
	res, err := svc.RegisterAdmin(context.Background(), "admin", "secret123", audit.Context{})
	if err != nil {
		t.Fatalf("RegisterAdmin: %v", err)
	}
	if assigned != RoleAdmin {
		t.Fatalf("expected admin role assignment, got %d", assigned)
	}
	claims, err := svc.tokens.ParseAndValidate(res.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleAdmin {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestRegisterAdminToleratesExistingAssignment(t *testing.T) {
	store := &stubStore{}
	store.roles.assignFn = func(context.Context, int64, RoleID) error { return ErrConflict }

	svc := newTestService(t, store, nil)
	if _, err := svc.RegisterAdmin(context.Background(), "admin", "secret123", audit.Context{}); err != nil {
		t.Fatalf("RegisterAdmin with existing role: %v", err)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	svc := newTestService(t, &stubStore{}, nil)

	if _, err := svc.CreateAccount(context.Background(), "", "secret123", nil, audit.Context{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty username: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.CreateAccount(context.Background(), "budi", "short", nil, audit.Context{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short password: expected ErrInvalidInput, got %v", err)
	}
}

func TestCreateAccountDedupesInitialRoles(t *testing.T) {
	store := &stubStore{}
	var got []RoleID
	store.roles.replaceAllFn = func(_ context.Context, _ int64, roleIDs []RoleID) error {
		got = roleIDs
		return nil
	}

	svc := newTestService(t, store, nil)
	res, err := svc.CreateAccount(context.Background(), "budi", "secret123",
		[]RoleID{RoleKasir, RoleKasir, RoleOwner, 0}, audit.Context{})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if len(got) != 2 || got[0] != RoleKasir || got[1] != RoleOwner {
		t.Fatalf("expected deduped roles, store saw %v", got)
	}
	if len(res.Roles) != 2 {
		t.Fatalf("unexpected result roles: %v", res.Roles)
	}
}

func TestUpdateAccountRequiresAChange(t *testing.T) {
	svc := newTestService(t, &stubStore{}, nil)
	if err := svc.UpdateAccount(context.Background(), 1, "", "", audit.Context{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.UpdateAccount(context.Background(), 1, "", "short", audit.Context{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short password: expected ErrInvalidInput, got %v", err)
	}
}
