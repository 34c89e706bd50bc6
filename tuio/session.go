package tuio

import (
	"sort"
	"sync"
)

// SessionID identifies one tracked element for its lifetime. It travels as an OSC int32.
type SessionID int32

// NoSession marks an element without a session identifier.
const NoSession SessionID = -1

// Allocator hands out session identifiers.
// Implementations must be safe for concurrent use.
type Allocator interface {
	// Next allocates a fresh identifier. It never returns an identifier that already exists.
	Next() SessionID
	// Peek returns the identifier Next would try first without allocating it.
	Peek() SessionID
	// Exists reports whether id was allocated or reserved.
	Exists(id SessionID) bool
	// Reserve marks id as existing so it is never allocated.
	Reserve(id SessionID)
	// Existing returns all allocated or reserved identifiers in ascending order.
	Existing() []SessionID
}

// SessionAllocator is a monotonic Allocator guarded by a mutex.
type SessionAllocator struct {
	mu       sync.Mutex
	current  SessionID
	existing map[SessionID]struct{}
}

// NewSessionAllocator creates allocator starting at zero
func NewSessionAllocator() *SessionAllocator {
	return NewSessionAllocatorFrom(0)
}

// NewSessionAllocatorFrom creates allocator starting at given identifier. Negative start is clamped to zero.
func NewSessionAllocatorFrom(start SessionID) *SessionAllocator {
	if start < 0 {
		start = 0
	}
	return &SessionAllocator{
		current:  start,
		existing: make(map[SessionID]struct{}),
	}
}

// Next allocates the next free identifier
func (a *SessionAllocator) Next() SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	for {
		id := a.current
		a.current++
		if _, ok := a.existing[id]; ok {
			continue
		}
		a.existing[id] = struct{}{}
		return id
	}
}

// Peek returns the current counter value
func (a *SessionAllocator) Peek() SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Exists reports whether id is taken
func (a *SessionAllocator) Exists(id SessionID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.existing[id]
	return ok
}

// Reserve marks id as taken. Negative identifiers are ignored.
func (a *SessionAllocator) Reserve(id SessionID) {
	if id < 0 {
		return
	}
	a.mu.Lock()
	a.existing[id] = struct{}{}
	a.mu.Unlock()
}

// Existing returns a sorted copy of all taken identifiers
func (a *SessionAllocator) Existing() []SessionID {
	a.mu.Lock()
	ids := make([]SessionID, 0, len(a.existing))
	for id := range a.existing {
		ids = append(ids, id)
	}
	a.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
