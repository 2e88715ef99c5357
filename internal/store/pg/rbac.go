package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"kasirpos.org/internal/auth"
)

type roleStore struct{ db *sqlx.DB }

func (s *roleStore) List(ctx context.Context) ([]auth.Role, error) {
	var roles []auth.Role
	err := s.db.SelectContext(ctx, &roles, `
		select id, name, description
		from roles
		order by id
	`)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *roleStore) Find(ctx context.Context, id auth.RoleID) (auth.Role, error) {
	var role auth.Role
	err := s.db.GetContext(ctx, &role, `
		select id, name, description
		from roles
		where id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

func (s *roleStore) RolesOf(ctx context.Context, accountID int64) ([]auth.RoleID, error) {
	var roleIDs []auth.RoleID
	err := s.db.SelectContext(ctx, &roleIDs, `
		select role_id
		from account_roles
		where account_id = $1
		order by role_id
	`, accountID)
	if err != nil {
		return nil, err
	}
	return roleIDs, nil
}

// ReplaceAll runs the delete+insert as one transaction so a concurrent
// RolesOf never observes the transient empty set.
func (s *roleStore) ReplaceAll(ctx context.Context, accountID int64, roleIDs []auth.RoleID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from account_roles where account_id = $1`, accountID); err != nil {
		return err
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`insert into account_roles (account_id, role_id) values ($1, $2)`,
			accountID, roleID,
		); err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
				return auth.ErrNotFound
			}
			return err
		}
	}
	return tx.Commit()
}

func (s *roleStore) Assign(ctx context.Context, accountID int64, roleID auth.RoleID) error {
	_, err := s.db.ExecContext(ctx,
		`insert into account_roles (account_id, role_id) values ($1, $2)`,
		accountID, roleID,
	)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *roleStore) Remove(ctx context.Context, accountID int64, roleID auth.RoleID) error {
	res, err := s.db.ExecContext(ctx,
		`delete from account_roles where account_id = $1 and role_id = $2`,
		accountID, roleID,
	)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
