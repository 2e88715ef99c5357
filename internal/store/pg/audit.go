package pg

import (
	"context"
	"database/sql"

	"kasirpos.org/internal/audit"
)

// Append writes one access-log row. account_id is null when the actor could
// not be resolved.
func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	accountID := sql.NullInt64{Int64: event.AccountID, Valid: event.AccountID > 0}
	_, err := s.db.ExecContext(ctx, `
		insert into access_logs (id, account_id, action, ip, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, event.ID, accountID, event.Action, event.IP, event.UserAgent, event.CreatedAt)
	return err
}
