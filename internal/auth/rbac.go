package auth

import (
	"context"
	"fmt"

	"kasirpos.org/internal/audit"
)

// RoleRegistry manages the many-to-many account-role relation. It is the
// single source of truth for "account has role"; tokens only carry a
// snapshot of what it said at issuance time.
type RoleRegistry struct {
	store Store
	sink  audit.Sink
}

// NewRoleRegistry constructs a registry. The sink may be nil.
func NewRoleRegistry(store Store, sink audit.Sink) (*RoleRegistry, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	return &RoleRegistry{store: store, sink: sink}, nil
}

// Roles returns the role catalog.
func (r *RoleRegistry) Roles(ctx context.Context) ([]Role, error) {
	return r.store.Roles(ctx).List(ctx)
}

// RolesOf returns the account's current role ids.
func (r *RoleRegistry) RolesOf(ctx context.Context, accountID int64) ([]RoleID, error) {
	if accountID <= 0 {
		return nil, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return r.store.Roles(ctx).RolesOf(ctx, accountID)
}

// ReplaceAll installs roleIDs as the account's complete role set, atomically.
// Input duplicates are collapsed. Rejecting an empty final set is the
// caller's precondition, not enforced here.
func (r *RoleRegistry) ReplaceAll(ctx context.Context, accountID int64, roleIDs []RoleID, meta audit.Context) error {
	if accountID <= 0 {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	deduped := DedupeRoleIDs(roleIDs)
	if err := r.store.Roles(ctx).ReplaceAll(ctx, accountID, deduped); err != nil {
		return err
	}
	r.emit(ctx, accountID, "roles.replace", meta)
	return nil
}

// AssignOne adds a single role; ErrConflict when the pair already exists.
func (r *RoleRegistry) AssignOne(ctx context.Context, accountID int64, roleID RoleID, meta audit.Context) error {
	if accountID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: account id and role id are required", ErrInvalidInput)
	}
	if err := r.store.Roles(ctx).Assign(ctx, accountID, roleID); err != nil {
		return err
	}
	r.emit(ctx, accountID, "roles.assign", meta)
	return nil
}

// RemoveOne removes a single role; ErrNotFound when the pair does not exist.
func (r *RoleRegistry) RemoveOne(ctx context.Context, accountID int64, roleID RoleID, meta audit.Context) error {
	if accountID <= 0 || roleID <= 0 {
		return fmt.Errorf("%w: account id and role id are required", ErrInvalidInput)
	}
	if err := r.store.Roles(ctx).Remove(ctx, accountID, roleID); err != nil {
		return err
	}
	r.emit(ctx, accountID, "roles.remove", meta)
	return nil
}

func (r *RoleRegistry) emit(ctx context.Context, accountID int64, action string, meta audit.Context) {
	if r.sink == nil {
		return
	}
	r.sink.Emit(ctx, accountID, action, meta)
}
