// Package events defines the notifications the ledger emits for off-core
// consumers, and the publisher interface implementations must satisfy.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AccountCreated is emitted synchronously after a shared account is opened.
type AccountCreated struct {
	AccountID  uint64      `json:"account_id"`
	Owners     []uuid.UUID `json:"owners"`
	OccurredAt time.Time   `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, any) error { return nil }

// Recorder keeps published events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []any
}

func (r *Recorder) Publish(_ context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}
