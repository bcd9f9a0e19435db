package testutil

import (
	"fmt"
	"sync"
)

// SessionIDs hands out predictable session identifiers:
// "test-session-0001", "test-session-0002", and so on.
//
// Thread-safety: SessionIDs is safe for concurrent use.
type SessionIDs struct {
	mu   sync.Mutex
	next int
}

// Next returns the next identifier.
func (s *SessionIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("test-session-%04d", s.next)
}

// Reset restarts the sequence.
func (s *SessionIDs) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next = 0
}
