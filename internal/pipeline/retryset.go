package pipeline

import "sync"

// RetryEntry identifies a message that was forwarded but could not be
// marked read. Entries live only for the current process run.
type RetryEntry struct {
	Account   string
	MessageID string
}

// RetrySet is the one piece of cross-message shared mutable state: any
// in-flight message may insert, and the periodic sweep drains.
type RetrySet struct {
	mu      sync.Mutex
	entries map[RetryEntry]struct{}
}

// NewRetrySet creates an empty set.
func NewRetrySet() *RetrySet {
	return &RetrySet{entries: make(map[RetryEntry]struct{})}
}

// Insert adds an entry; inserting an existing entry is a no-op.
func (s *RetrySet) Insert(e RetryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e] = struct{}{}
}

// Drain removes and returns all entries. Entries that still fail must be
// re-inserted by the caller.
func (s *RetrySet) Drain() []RetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RetryEntry, 0, len(s.entries))
	for e := range s.entries {
		out = append(out, e)
	}
	s.entries = make(map[RetryEntry]struct{})
	return out
}

// Len returns the current number of entries.
func (s *RetrySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Contains reports whether the entry is queued.
func (s *RetrySet) Contains(e RetryEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[e]
	return ok
}
