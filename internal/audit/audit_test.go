package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureLog struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureLog) Append(_ context.Context, event *Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, *event)
	return nil
}

func TestRecorderAppendsEvent(t *testing.T) {
	log := &captureLog{}
	rec := NewRecorder(log, nil)
	rec.sync = true
	rec.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	rec.Emit(context.Background(), 42, "auth.login.ok", Context{IP: "10.0.0.1", UserAgent: "curl"})

	if len(log.events) != 1 {
		t.Fatalf("expected one event, got %d", len(log.events))
	}
	got := log.events[0]
	if got.ID == "" {
		t.Fatal("expected a generated event id")
	}
	if got.AccountID != 42 || got.Action != "auth.login.ok" || got.IP != "10.0.0.1" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", got.CreatedAt)
	}
}

func TestRecorderSwallowsSinkFailure(t *testing.T) {
	log := &captureLog{err: errors.New("disk full")}
	rec := NewRecorder(log, nil)
	rec.sync = true

	// Must not panic or surface the error.
	rec.Emit(context.Background(), 1, "auth.login.ok", Context{})
}

func TestRecorderIgnoresEmptyAction(t *testing.T) {
	log := &captureLog{}
	rec := NewRecorder(log, nil)
	rec.sync = true

	rec.Emit(context.Background(), 1, "", Context{})
	if len(log.events) != 0 {
		t.Fatalf("empty action must not be recorded: %+v", log.events)
	}
}

func TestRecorderIgnoresCallerCancellation(t *testing.T) {
	log := &captureLog{}
	rec := NewRecorder(log, nil)
	rec.sync = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Emit(ctx, 1, "account.delete", Context{})
	if len(log.events) != 1 {
		t.Fatal("a cancelled caller context must not drop the event")
	}
}
