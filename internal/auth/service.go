package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kasirpos.org/internal/audit"
)

const (
	defaultFailureThreshold = 5
	defaultLockDuration     = 30 * time.Minute
)

// Service orchestrates credential verification, the failed-attempt lockout
// state machine and session token issuance.
type Service struct {
	store  Store
	tokens *TokenIssuer
	sink   audit.Sink
	now    func() time.Time

	failureThreshold int
	lockDuration     time.Duration
	bcryptCost       int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithFailureThreshold overrides the number of failures that opens a lock.
func WithFailureThreshold(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.failureThreshold = n
		}
	}
}

// WithLockDuration overrides the lock episode length.
func WithLockDuration(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lockDuration = d
		}
	}
}

// WithBcryptCost overrides the bcrypt work factor for new hashes.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) {
		if cost > 0 {
			s.bcryptCost = cost
		}
	}
}

// NewService constructs the auth service. The sink may be nil; audit then
// becomes a no-op.
func NewService(store Store, tokens *TokenIssuer, sink audit.Sink, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	s := &Service{
		store:            store,
		tokens:           tokens,
		sink:             sink,
		now:              time.Now,
		failureThreshold: defaultFailureThreshold,
		lockDuration:     defaultLockDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoginResult is the successful outcome of Login and RegisterAdmin.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *Account
	Roles     []RoleID
}

// AccountWithRoles pairs an account with its current role ids.
type AccountWithRoles struct {
	Account *Account `json:"account"`
	Roles   []RoleID `json:"roles"`
}

// Login verifies credentials under the lockout state machine.
//
// Order matters: the lock state is checked before the password, so a locked
// account never has its password verified; a failed verification feeds the
// attempt counter, which may itself open a lock. Every outcome is audited.
func (s *Service) Login(ctx context.Context, username, password string, meta audit.Context) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	account, err := s.store.Accounts(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.emit(ctx, 0, "auth.login.unknown_user", meta)
			return nil, ErrNotFound
		}
		return nil, err
	}

	locks := s.store.Locks(ctx)
	lock, err := locks.Active(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		if lock.LockedUntil.After(s.now()) {
			s.emit(ctx, account.ID, "auth.login.denied_locked", meta)
			return nil, &LockedError{LockedUntil: lock.LockedUntil}
		}
		// Lazy expiry: the lock is only released when observed here.
		if _, err := locks.ReleaseExpired(ctx, account.ID, s.now()); err != nil {
			return nil, err
		}
	}

	if err := VerifyPassword(account.PasswordHash, password); err != nil {
		lockedUntil := s.now().Add(s.lockDuration)
		res, ferr := s.store.Attempts(ctx).RecordFailure(ctx, account.ID, s.failureThreshold, lockedUntil)
		if ferr != nil {
			return nil, ferr
		}
		if res.LockTriggered {
			s.emit(ctx, account.ID, "auth.login.locked", meta)
			return nil, &LockedError{LockedUntil: lockedUntil, Opened: true}
		}
		s.emit(ctx, account.ID, "auth.login.wrong_password", meta)
		return nil, ErrInvalidCredentials
	}

	if err := s.store.Attempts(ctx).Reset(ctx, account.ID); err != nil {
		return nil, err
	}
	roleIDs, err := s.store.Roles(ctx).RolesOf(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(account, roleIDs)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, account.ID, "auth.login.ok", meta)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account, Roles: roleIDs}, nil
}

// RegisterAdmin creates an account holding the admin role and issues a token
// for it. Used once to bootstrap the back office.
func (s *Service) RegisterAdmin(ctx context.Context, username, password string, meta audit.Context) (*LoginResult, error) {
	account, err := s.createAccount(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.store.Roles(ctx).Assign(ctx, account.ID, RoleAdmin); err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	roles := []RoleID{RoleAdmin}
	token, expiresAt, err := s.tokens.Issue(account, roles)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, account.ID, "auth.register_admin", meta)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account, Roles: roles}, nil
}

// CreateAccount creates an account with an optional initial role set.
func (s *Service) CreateAccount(ctx context.Context, username, password string, roleIDs []RoleID, meta audit.Context) (*AccountWithRoles, error) {
	account, err := s.createAccount(ctx, username, password)
	if err != nil {
		return nil, err
	}
	roleIDs = DedupeRoleIDs(roleIDs)
	if len(roleIDs) > 0 {
		if err := s.store.Roles(ctx).ReplaceAll(ctx, account.ID, roleIDs); err != nil {
			return nil, err
		}
	}
	s.emit(ctx, account.ID, "account.create", meta)
	return &AccountWithRoles{Account: account, Roles: roleIDs}, nil
}

// UpdateAccount renames an account and/or resets its password.
func (s *Service) UpdateAccount(ctx context.Context, id int64, username, password string, meta audit.Context) error {
	var upd AccountUpdate
	if username = strings.TrimSpace(username); username != "" {
		upd.Username = &username
	}
	if password != "" {
		if len(password) < MinPasswordLength {
			return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
		}
		hash, err := HashPassword(password, s.bcryptCost)
		if err != nil {
			return err
		}
		upd.PasswordHash = &hash
	}
	if upd.Username == nil && upd.PasswordHash == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if err := s.store.Accounts(ctx).Update(ctx, id, upd); err != nil {
		return err
	}
	s.emit(ctx, id, "account.update", meta)
	return nil
}

// DeleteAccount soft-deletes the account. The attempt counter and lock
// episodes go with it; audit history stays.
func (s *Service) DeleteAccount(ctx context.Context, id int64, meta audit.Context) error {
	if err := s.store.Accounts(ctx).SoftDelete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, id, "account.delete", meta)
	return nil
}

// ListAccounts returns all non-deleted accounts with their role sets.
func (s *Service) ListAccounts(ctx context.Context) ([]AccountWithRoles, error) {
	accounts, err := s.store.Accounts(ctx).List(ctx)
	if err != nil {
		return nil, err
	}
	roles := s.store.Roles(ctx)
	out := make([]AccountWithRoles, 0, len(accounts))
	for _, account := range accounts {
		roleIDs, err := roles.RolesOf(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, AccountWithRoles{Account: account, Roles: roleIDs})
	}
	return out, nil
}

// Unlock performs the manual Locked -> Unlocked transition. The attempt
// counter is already zero: it was reset when the lock was created.
func (s *Service) Unlock(ctx context.Context, accountID int64, meta audit.Context) error {
	if err := s.store.Locks(ctx).Unlock(ctx, accountID); err != nil {
		return err
	}
	s.emit(ctx, accountID, "auth.unlock", meta)
	return nil
}

// ActiveLocks lists accounts still marked locked. Because expiry is lazy,
// entries past their locked_until remain listed until a login attempt or a
// manual unlock flips them.
func (s *Service) ActiveLocks(ctx context.Context) ([]LockEpisode, error) {
	return s.store.Locks(ctx).ListActive(ctx)
}

func (s *Service) createAccount(ctx context.Context, username, password string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	account := &Account{Username: username, PasswordHash: hash}
	if err := s.store.Accounts(ctx).Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) emit(ctx context.Context, accountID int64, action string, meta audit.Context) {
	if s.sink == nil {
		return
	}
	s.sink.Emit(ctx, accountID, action, meta)
}
