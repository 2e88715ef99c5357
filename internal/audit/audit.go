// Package audit records security-relevant events (login outcomes, role and
// lock changes). Emission is best-effort: a failing sink never makes the
// authentication path less available.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kasirpos.org/internal/ids"
)

// Context carries request metadata attached to an event.
type Context struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Event is one append-only audit row. AccountID is zero when the actor could
// not be resolved (e.g. login with an unknown username).
type Event struct {
	ID        string    `json:"id" db:"id"`
	AccountID int64     `json:"account_id,omitempty" db:"account_id"`
	Action    string    `json:"action" db:"action"`
	IP        string    `json:"ip,omitempty" db:"ip"`
	UserAgent string    `json:"user_agent,omitempty" db:"user_agent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Log is the persistence half of the sink: an append-only store.
type Log interface {
	Append(ctx context.Context, event *Event) error
}

// Sink accepts events fire-and-forget.
type Sink interface {
	Emit(ctx context.Context, accountID int64, action string, meta Context)
}

const appendTimeout = 3 * time.Second

// Recorder is the production Sink: it appends asynchronously with its own
// timeout and swallows failures after logging them.
type Recorder struct {
	log    Log
	logger *zap.Logger
	now    func() time.Time

	// sync forces in-line appends; only set by tests.
	sync bool
}

// NewRecorder builds a Recorder. A nil logger falls back to zap.NewNop.
func NewRecorder(log Log, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{log: log, logger: logger, now: time.Now}
}

// Emit records the event. The caller's context is only consulted for values,
// never for cancellation: a client disconnect must not drop the audit trail
// of a mutation that already happened.
func (r *Recorder) Emit(ctx context.Context, accountID int64, action string, meta Context) {
	if r == nil || r.log == nil || action == "" {
		return
	}
	event := &Event{
		ID:        ids.New(),
		AccountID: accountID,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		CreatedAt: r.now().UTC(),
	}
	if r.sync {
		r.append(event)
		return
	}
	go r.append(event)
}

func (r *Recorder) append(event *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := r.log.Append(ctx, event); err != nil {
		r.logger.Warn("audit append failed",
			zap.String("action", event.Action),
			zap.Int64("account_id", event.AccountID),
			zap.Error(err),
		)
	}
}
