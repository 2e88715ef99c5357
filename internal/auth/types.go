package auth

import "time"

// RoleID identifies a role by its stable integer id.
type RoleID int64

// Seeded role ids. The catalog is modeled openly but these three are
// installed by the seed migration and referenced by the HTTP layer.
const (
	RoleAdmin RoleID = 1
	RoleKasir RoleID = 2
	RoleOwner RoleID = 3
)

// Account is a login identity. Accounts are soft-deleted: DeletedAt is set
// and the row stays in place so audit history keeps resolving.
type Account struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	PasswordHash string     `json:"-" db:"password_hash"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time `json:"-" db:"deleted_at"`
}

// Role is a named permission bucket.
type Role struct {
	ID          RoleID `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
}

// LoginAttempt is the per-account failed-login counter. At most one row per
// account; created lazily on the first failure.
type LoginAttempt struct {
	AccountID   int64     `json:"account_id" db:"account_id"`
	Attempts    int       `json:"attempts" db:"attempts"`
	LastAttempt time.Time `json:"last_attempt" db:"last_attempt"`
}

// LockEpisode is one time-bounded login suspension. Rows are append-only;
// the single IsLocked flip on expiry or manual unlock is the only mutation.
type LockEpisode struct {
	ID          int64     `json:"id" db:"id"`
	AccountID   int64     `json:"account_id" db:"account_id"`
	IsLocked    bool      `json:"is_locked" db:"is_locked"`
	LockedUntil time.Time `json:"locked_until" db:"locked_until"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// AccountUpdate carries optional account mutations. Nil fields are left
// untouched.
type AccountUpdate struct {
	Username     *string
	PasswordHash *string
}

// FailureResult reports the outcome of recording one failed login.
type FailureResult struct {
	Attempts      int
	LockTriggered bool
}

// DedupeRoleIDs drops non-positive ids and duplicates, preserving order.
func DedupeRoleIDs(roleIDs []RoleID) []RoleID {
	if len(roleIDs) == 0 {
		return nil
	}
	seen := make(map[RoleID]struct{}, len(roleIDs))
	var out []RoleID
	for _, id := range roleIDs {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
