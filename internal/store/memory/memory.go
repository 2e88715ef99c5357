// Package memory implements auth.Store and audit.Log in process memory.
// It backs tests and the dev mode of cmd/api; production deployments use
// the Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kasirpos.org/internal/audit"
	"kasirpos.org/internal/auth"
)

// Store keeps all state under one mutex. That is a stronger serialization
// than the per-account row locks the Postgres store uses, so every invariant
// of the attempt/lock unit holds trivially.
type Store struct {
	mu sync.RWMutex

	accounts      map[int64]*auth.Account
	nextAccountID int64

	roles        map[auth.RoleID]auth.Role
	accountRoles map[int64]map[auth.RoleID]struct{}

	attempts map[int64]*auth.LoginAttempt

	locks      []*auth.LockEpisode
	nextLockID int64

	events []*audit.Event
}

var _ auth.Store = (*Store)(nil)
var _ audit.Log = (*Store)(nil)

// New creates a store pre-seeded with the fixed role catalog.
func New() *Store {
	return &Store{
		accounts:     make(map[int64]*auth.Account),
		accountRoles: make(map[int64]map[auth.RoleID]struct{}),
		attempts:     make(map[int64]*auth.LoginAttempt),
		roles: map[auth.RoleID]auth.Role{
			auth.RoleAdmin: {ID: auth.RoleAdmin, Name: "admin", Description: "Full access"},
			auth.RoleKasir: {ID: auth.RoleKasir, Name: "kasir", Description: "Cashier operations"},
			auth.RoleOwner: {ID: auth.RoleOwner, Name: "owner", Description: "Reports and oversight"},
		},
	}
}

func (s *Store) Accounts(ctx context.Context) auth.AccountStore { return &accountStore{s} }
func (s *Store) Roles(ctx context.Context) auth.RoleStore       { return &roleStore{s} }
func (s *Store) Attempts(ctx context.Context) auth.AttemptStore { return &attemptStore{s} }
func (s *Store) Locks(ctx context.Context) auth.LockStore       { return &lockStore{s} }

// Account store ------------------------------------------------------------

type accountStore struct{ s *Store }

func (a *accountStore) Create(ctx context.Context, account *auth.Account) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.DeletedAt == nil && strings.EqualFold(existing.Username, account.Username) {
			return auth.ErrConflict
		}
	}
	s.nextAccountID++
	now := time.Now().UTC()
	account.ID = s.nextAccountID
	account.CreatedAt = now
	account.UpdatedAt = now
	copied := *account
	s.accounts[account.ID] = &copied
	return nil
}

func (a *accountStore) Find(ctx context.Context, id int64) (*auth.Account, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok || account.DeletedAt != nil {
		return nil, auth.ErrNotFound
	}
	out := *account
	return &out, nil
}

func (a *accountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.DeletedAt == nil && strings.EqualFold(account.Username, username) {
			out := *account
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (a *accountStore) List(ctx context.Context) ([]*auth.Account, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*auth.Account
	for _, account := range s.accounts {
		if account.DeletedAt != nil {
			continue
		}
		copied := *account
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *accountStore) Update(ctx context.Context, id int64, upd auth.AccountUpdate) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok || account.DeletedAt != nil {
		return auth.ErrNotFound
	}
	if upd.Username != nil {
		for otherID, other := range s.accounts {
			if otherID != id && other.DeletedAt == nil && strings.EqualFold(other.Username, *upd.Username) {
				return auth.ErrConflict
			}
		}
		account.Username = *upd.Username
	}
	if upd.PasswordHash != nil {
		account.PasswordHash = *upd.PasswordHash
	}
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *accountStore) SoftDelete(ctx context.Context, id int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok || account.DeletedAt != nil {
		return auth.ErrNotFound
	}
	now := time.Now().UTC()
	account.DeletedAt = &now
	delete(s.attempts, id)
	kept := s.locks[:0]
	for _, lock := range s.locks {
		if lock.AccountID != id {
			kept = append(kept, lock)
		}
	}
	s.locks = kept
	return nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ s *Store }

func (r *roleStore) List(ctx context.Context) ([]auth.Role, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *roleStore) Find(ctx context.Context, id auth.RoleID) (auth.Role, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, nil
}

func (r *roleStore) RolesOf(ctx context.Context, accountID int64) ([]auth.RoleID, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.accountRoles[accountID]
	out := make([]auth.RoleID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *roleStore) ReplaceAll(ctx context.Context, accountID int64, roleIDs []auth.RoleID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range roleIDs {
		if _, ok := s.roles[id]; !ok {
			return auth.ErrNotFound
		}
	}
	set := make(map[auth.RoleID]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		set[id] = struct{}{}
	}
	s.accountRoles[accountID] = set
	return nil
}

func (r *roleStore) Assign(ctx context.Context, accountID int64, roleID auth.RoleID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	set, ok := s.accountRoles[accountID]
	if !ok {
		set = make(map[auth.RoleID]struct{})
		s.accountRoles[accountID] = set
	}
	if _, exists := set[roleID]; exists {
		return auth.ErrConflict
	}
	set[roleID] = struct{}{}
	return nil
}

func (r *roleStore) Remove(ctx context.Context, accountID int64, roleID auth.RoleID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.accountRoles[accountID]
	if _, exists := set[roleID]; !exists {
		return auth.ErrNotFound
	}
	delete(set, roleID)
	return nil
}

// Attempt store ------------------------------------------------------------

type attemptStore struct{ s *Store }

func (a *attemptStore) RecordFailure(ctx context.Context, accountID int64, threshold int, lockedUntil time.Time) (auth.FailureResult, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	attempt, ok := s.attempts[accountID]
	if !ok {
		attempt = &auth.LoginAttempt{AccountID: accountID}
		s.attempts[accountID] = attempt
	}
	attempt.Attempts++
	attempt.LastAttempt = now
	if attempt.Attempts < threshold {
		return auth.FailureResult{Attempts: attempt.Attempts}, nil
	}
	// Threshold reached: reset and open the episode under the same lock so
	// no observer sees one without the other.
	attempt.Attempts = 0
	s.nextLockID++
	s.locks = append(s.locks, &auth.LockEpisode{
		ID:          s.nextLockID,
		AccountID:   accountID,
		IsLocked:    true,
		LockedUntil: lockedUntil,
		CreatedAt:   now,
	})
	return auth.FailureResult{Attempts: 0, LockTriggered: true}, nil
}

func (a *attemptStore) Reset(ctx context.Context, accountID int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[accountID]; ok {
		attempt.Attempts = 0
	}
	return nil
}

func (a *attemptStore) Get(ctx context.Context, accountID int64) (*auth.LoginAttempt, error) {
	s := a.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[accountID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	out := *attempt
	return &out, nil
}

// Lock store ---------------------------------------------------------------

type lockStore struct{ s *Store }

func (l *lockStore) Active(ctx context.Context, accountID int64) (*auth.LockEpisode, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	lock := s.activeLocked(accountID)
	if lock == nil {
		return nil, nil
	}
	out := *lock
	return &out, nil
}

func (l *lockStore) ReleaseExpired(ctx context.Context, accountID int64, now time.Time) (bool, error) {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	released := false
	for _, lock := range s.locks {
		if lock.AccountID == accountID && lock.IsLocked && !lock.LockedUntil.After(now) {
			lock.IsLocked = false
			released = true
		}
	}
	return released, nil
}

func (l *lockStore) Unlock(ctx context.Context, accountID int64) error {
	s := l.s
	s.mu.Lock()
	defer s.mu.Unlock()
	flipped := false
	for _, lock := range s.locks {
		if lock.AccountID == accountID && lock.IsLocked {
			lock.IsLocked = false
			flipped = true
		}
	}
	if !flipped {
		return auth.ErrNotFound
	}
	return nil
}

func (l *lockStore) ListActive(ctx context.Context) ([]auth.LockEpisode, error) {
	s := l.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.LockEpisode
	for _, lock := range s.locks {
		if lock.IsLocked {
			out = append(out, *lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// activeLocked returns the is_locked episode with the latest locked_until.
// Callers hold s.mu.
func (s *Store) activeLocked(accountID int64) *auth.LockEpisode {
	var active *auth.LockEpisode
	for _, lock := range s.locks {
		if lock.AccountID != accountID || !lock.IsLocked {
			continue
		}
		if active == nil || lock.LockedUntil.After(active.LockedUntil) {
			active = lock
		}
	}
	return active
}

// Audit --------------------------------------------------------------------

func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// Events returns a copy of the audit log, oldest first. Test helper.
func (s *Store) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, *event)
	}
	return out
}
