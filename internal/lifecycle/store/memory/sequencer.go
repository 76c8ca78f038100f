package memory

import (
	"context"
	"sync"

	id "bloodbank/pkg/domain"
)

// Sequencer is an in-process ports.Sequencer.
type Sequencer struct {
	mu   sync.Mutex
	next map[string]int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{next: make(map[string]int64)}
}

func (s *Sequencer) Next(_ context.Context, org id.OrgID, scope string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(org) + "/" + scope
	s.next[key]++
	return s.next[key], nil
}
