package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"kasirpos.org/internal/auth"
)

type attemptStore struct{ db *sqlx.DB }

// RecordFailure performs the whole increment / threshold-check / reset /
// episode-create sequence in one transaction. The upsert takes the row lock
// on the counter, which serializes concurrent failures for the same account:
// a second failure blocks until the first commits, then sees its result.
func (s *attemptStore) RecordFailure(ctx context.Context, accountID int64, threshold int, lockedUntil time.Time) (auth.FailureResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return auth.FailureResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var attempts int
	err = tx.QueryRowxContext(ctx, `
		insert into login_attempts (account_id, attempts, last_attempt)
		values ($1, 1, now())
		on conflict (account_id) do update
		set attempts = login_attempts.attempts + 1, last_attempt = now()
		returning attempts
	`, accountID).Scan(&attempts)
	if err != nil {
		return auth.FailureResult{}, err
	}

	if attempts < threshold {
		if err := tx.Commit(); err != nil {
			return auth.FailureResult{}, err
		}
		return auth.FailureResult{Attempts: attempts}, nil
	}

	// Threshold reached: reset the counter and open the episode before the
	// commit makes either visible.
	if _, err := tx.ExecContext(ctx,
		`update login_attempts set attempts = 0 where account_id = $1`, accountID); err != nil {
		return auth.FailureResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into lock_episodes (account_id, is_locked, locked_until)
		values ($1, true, $2)
	`, accountID, lockedUntil); err != nil {
		return auth.FailureResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.FailureResult{}, err
	}
	return auth.FailureResult{Attempts: 0, LockTriggered: true}, nil
}

func (s *attemptStore) Reset(ctx context.Context, accountID int64) error {
	_, err := s.db.ExecContext(ctx,
		`update login_attempts set attempts = 0 where account_id = $1`, accountID)
	return err
}

func (s *attemptStore) Get(ctx context.Context, accountID int64) (*auth.LoginAttempt, error) {
	var attempt auth.LoginAttempt
	err := s.db.GetContext(ctx, &attempt, `
		select account_id, attempts, last_attempt
		from login_attempts
		where account_id = $1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

type lockStore struct{ db *sqlx.DB }

func (s *lockStore) Active(ctx context.Context, accountID int64) (*auth.LockEpisode, error) {
	var lock auth.LockEpisode
	err := s.db.GetContext(ctx, &lock, `
		select id, account_id, is_locked, locked_until, created_at
		from lock_episodes
		where account_id = $1 and is_locked
		order by locked_until desc
		limit 1
	`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

// ReleaseExpired flips locks that have run out. The predicate makes it
// idempotent: a concurrent second flip matches zero rows.
func (s *lockStore) ReleaseExpired(ctx context.Context, accountID int64, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update lock_episodes
		set is_locked = false
		where account_id = $1 and is_locked and locked_until <= $2
	`, accountID, now)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *lockStore) Unlock(ctx context.Context, accountID int64) error {
	res, err := s.db.ExecContext(ctx, `
		update lock_episodes
		set is_locked = false
		where account_id = $1 and is_locked
	`, accountID)
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

func (s *lockStore) ListActive(ctx context.Context) ([]auth.LockEpisode, error) {
	var locks []auth.LockEpisode
	err := s.db.SelectContext(ctx, &locks, `
		select id, account_id, is_locked, locked_until, created_at
		from lock_episodes
		where is_locked
		order by locked_until desc
	`)
	if err != nil {
		return nil, err
	}
	return locks, nil
}
