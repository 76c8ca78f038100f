package memory

import (
	"context"
	"slices"
	"sync"

	id "bloodbank/pkg/domain"
	audit "bloodbank/pkg/platform/audit"
)

type targetKey struct {
	org  id.OrgID
	kind string
	id   string
}

// InMemoryStore keeps transition history per target, in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[targetKey][]audit.TransitionEvent
	total  int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[targetKey][]audit.TransitionEvent)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[targetKey][]audit.TransitionEvent)
	s.total = 0
}

func (s *InMemoryStore) Append(_ context.Context, event audit.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := targetKey{org: event.OrgID, kind: event.TargetKind, id: event.TargetID}
	s.events[key] = append(s.events[key], event)
	s.total++
	return nil
}

// ListByTarget returns the history of one target, oldest first.
func (s *InMemoryStore) ListByTarget(_ context.Context, org id.OrgID, kind, targetID string) ([]audit.TransitionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events[targetKey{org: org, kind: kind, id: targetID}]), nil
}

// Len returns the number of events recorded across all targets.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
