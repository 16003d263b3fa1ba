// Package session remembers the pending order of each (tenant, contact) and
// serializes the messages of a single contact.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long an idle cart reference is remembered.
const DefaultTTL = 24 * time.Hour

// ErrMiss is returned when the contact has no cart reference.
var ErrMiss = errors.New("session: miss")

// Store maps a contact to the id of its pending order.
type Store interface {
	Get(ctx context.Context, tenantID, contactID string) (string, error)
	Set(ctx context.Context, tenantID, contactID, orderID string) error
	Clear(ctx context.Context, tenantID, contactID string) error
}

// Key is the lock and storage key for a contact.
func Key(tenantID, contactID string) string {
	return fmt.Sprintf("%s:%s", tenantID, contactID)
}

type memoryEntry struct {
	orderID   string
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, tenantID, contactID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(tenantID, contactID)
	e, ok := s.entries[key]
	if !ok {
		return "", ErrMiss
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return "", ErrMiss
	}
	return e.orderID, nil
}

func (s *MemoryStore) Set(_ context.Context, tenantID, contactID, orderID string) error {
	s.mu.Lock()
	s.entries[Key(tenantID, contactID)] = memoryEntry{orderID: orderID, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, tenantID, contactID string) error {
	s.mu.Lock()
	delete(s.entries, Key(tenantID, contactID))
	s.mu.Unlock()
	return nil
}
