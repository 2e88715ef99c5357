package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"kasirpos.org/internal/auth"
)

type accountStore struct{ db *sqlx.DB }

func (s *accountStore) Create(ctx context.Context, account *auth.Account) error {
	row := s.db.QueryRowxContext(ctx, `
		insert into accounts (username, password_hash)
		values ($1, $2)
		returning id, created_at, updated_at
	`, account.Username, account.PasswordHash)
	if err := row.Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *accountStore) Find(ctx context.Context, id int64) (*auth.Account, error) {
	var account auth.Account
	err := s.db.GetContext(ctx, &account, `
		select id, username, password_hash, created_at, updated_at, deleted_at
		from accounts
		where id = $1 and deleted_at is null
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *accountStore) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	var account auth.Account
	err := s.db.GetContext(ctx, &account, `
		select id, username, password_hash, created_at, updated_at, deleted_at
		from accounts
		where lower(username) = lower($1) and deleted_at is null
	`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *accountStore) List(ctx context.Context) ([]*auth.Account, error) {
	var accounts []*auth.Account
	err := s.db.SelectContext(ctx, &accounts, `
		select id, username, password_hash, created_at, updated_at, deleted_at
		from accounts
		where deleted_at is null
		order by id
	`)
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *accountStore) Update(ctx context.Context, id int64, upd auth.AccountUpdate) error {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	if upd.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, *upd.Username)
		idx++
	}
	if upd.PasswordHash != nil {
		setClauses = append(setClauses, fmt.Sprintf("password_hash = $%d", idx))
		args = append(args, *upd.PasswordHash)
		idx++
	}
	if len(setClauses) == 0 {
		return nil
	}
	setClauses = append(setClauses, "updated_at = now()")
	query := fmt.Sprintf(
		`update accounts set %s where id = $%d and deleted_at is null`,
		strings.Join(setClauses, ", "), idx,
	)
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
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

func (s *accountStore) SoftDelete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`update accounts set deleted_at = now(), updated_at = now() where id = $1 and deleted_at is null`, id)
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
	// Security state goes with the account; audit history stays.
	if _, err := tx.ExecContext(ctx, `delete from login_attempts where account_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `delete from lock_episodes where account_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
