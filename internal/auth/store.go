package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations required by the auth subsystem.
// Implementations must provide the transactional guarantees documented on
// each method; the service layer never does read-then-separate-write against
// contended rows.
type Store interface {
	Accounts(ctx context.Context) AccountStore
	Roles(ctx context.Context) RoleStore
	Attempts(ctx context.Context) AttemptStore
	Locks(ctx context.Context) LockStore
}

// AccountStore manages login identities.
type AccountStore interface {
	// Create inserts the account and fills in its id. ErrConflict when the
	// username is already taken by a non-deleted account.
	Create(ctx context.Context, account *Account) error
	Find(ctx context.Context, id int64) (*Account, error)
	// FindByUsername ignores soft-deleted accounts.
	FindByUsername(ctx context.Context, username string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
	Update(ctx context.Context, id int64, upd AccountUpdate) error
	// SoftDelete marks the account deleted and purges its security state
	// (attempt counter, lock episodes) in the same transaction. Audit rows
	// are preserved.
	SoftDelete(ctx context.Context, id int64) error
}

// RoleStore manages the role catalog and the account-role relation.
type RoleStore interface {
	List(ctx context.Context) ([]Role, error)
	Find(ctx context.Context, id RoleID) (Role, error)
	// RolesOf returns the current role set; never a stale snapshot.
	RolesOf(ctx context.Context, accountID int64) ([]RoleID, error)
	// ReplaceAll deletes the existing rows and inserts roleIDs as one
	// transaction. A concurrent RolesOf must never observe the transient
	// empty state.
	ReplaceAll(ctx context.Context, accountID int64, roleIDs []RoleID) error
	// Assign rejects an existing pair with ErrConflict.
	Assign(ctx context.Context, accountID int64, roleID RoleID) error
	// Remove returns ErrNotFound when the pair does not exist.
	Remove(ctx context.Context, accountID int64, roleID RoleID) error
}

// AttemptStore maintains the failed-login counter and drives the
// Unlocked -> Locked transition.
type AttemptStore interface {
	// RecordFailure increments the counter (creating it at 1 when absent).
	// When the incremented value reaches threshold it resets the counter to
	// zero and opens a lock episode ending at lockedUntil, all as a single
	// serialized unit per account: no observer may see attempts >= threshold
	// or the reset without the episode existing.
	RecordFailure(ctx context.Context, accountID int64, threshold int, lockedUntil time.Time) (FailureResult, error)
	// Reset clears the counter; a no-op when no row exists.
	Reset(ctx context.Context, accountID int64) error
	Get(ctx context.Context, accountID int64) (*LoginAttempt, error)
}

// LockStore answers lock-state queries and performs the Locked -> Unlocked
// transitions. Episode creation happens inside AttemptStore.RecordFailure.
type LockStore interface {
	// Active returns the authoritative episode: the is_locked row with the
	// latest locked_until. Nil when the account is unlocked.
	Active(ctx context.Context, accountID int64) (*LockEpisode, error)
	// ReleaseExpired flips an episode whose locked_until has passed.
	// Idempotent: a concurrent second flip reports false with no error.
	ReleaseExpired(ctx context.Context, accountID int64, now time.Time) (bool, error)
	// Unlock flips the active episode regardless of expiry. ErrNotFound when
	// there is no active lock.
	Unlock(ctx context.Context, accountID int64) error
	// ListActive reports accounts still marked locked. Expiry is lazy, so
	// entries may already be past locked_until.
	ListActive(ctx context.Context) ([]LockEpisode, error)
}
