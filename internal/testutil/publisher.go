package testutil

import (
	"context"
	"sync"

	"github.com/tendant/vfense-accounts/pkg/account"
	"github.com/tendant/vfense-accounts/pkg/domain"
)

// Stores returns the account store set backed by m.
func (m *MemStore) Stores() account.Stores {
	return account.Stores{
		Customers:   m.Customers(),
		Users:       m.Users(),
		Memberships: m.Memberships(),
		Groups:      m.Groups(),
	}
}

// Recorder is a publisher that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Types returns the types of the recorded events in order.
func (r *Recorder) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
