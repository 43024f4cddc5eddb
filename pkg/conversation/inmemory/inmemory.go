// Package inmemory implements the conversation store with an in-process
// map. Suitable for single-instance deployments and tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/llm"
)

type entry struct {
	messages  []llm.Message
	ttl       time.Duration
	expiresAt time.Time
}

// Driver implements conversation.Store using an in-memory map.
type Driver struct {
	mu sync.RWMutex

	// conversations maps user ID to its live log. Expired entries are
	// reaped lazily on access.
	conversations map[string]*entry

	// now is swappable for tests.
	now func() time.Time
}

// NewDriver creates a new in-memory conversation store.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*entry),
		now:           time.Now,
	}
}

func (d *Driver) Get(_ context.Context, userID string) ([]llm.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.live(userID)
	if !ok {
		return nil, conversation.ErrNotFound{UserID: userID}
	}

	out := make([]llm.Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (d *Driver) Put(_ context.Context, userID string, messages []llm.Message, ttl time.Duration) error {
	stored := make([]llm.Message, len(messages))
	copy(stored, messages)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.conversations[userID] = &entry{
		messages:  stored,
		ttl:       ttl,
		expiresAt: d.expiry(ttl),
	}
	return nil
}

func (d *Driver) Touch(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.live(userID)
	if !ok {
		return conversation.ErrNotFound{UserID: userID}
	}

	e.expiresAt = d.expiry(e.ttl)
	return nil
}

func (d *Driver) Trim(_ context.Context, userID string, keepLastN int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.live(userID)
	if !ok {
		return conversation.ErrNotFound{UserID: userID}
	}

	e.messages = conversation.TrimMessages(e.messages, keepLastN)
	return nil
}

func (d *Driver) Delete(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.conversations, userID)
	return nil
}

func (d *Driver) Close() error { return nil }

// live returns the entry for userID, reaping it first if expired.
// Callers must hold the write lock.
func (d *Driver) live(userID string) (*entry, bool) {
	e, ok := d.conversations[userID]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && d.now().After(e.expiresAt) {
		delete(d.conversations, userID)
		return nil, false
	}
	return e, true
}

func (d *Driver) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return d.now().Add(ttl)
}

var _ conversation.Store = (*Driver)(nil)
