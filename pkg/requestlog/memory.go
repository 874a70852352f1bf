package requestlog

import (
	"strconv"
	"sync"
	"time"
)

// DefaultCapacity is the history size used when none is given.
const DefaultCapacity = 1000

// subscriberBuffer is the channel capacity handed to subscribers.
const subscriberBuffer = 64

// MemoryStore is a SubscribableStore backed by a bounded in-memory buffer.
// The oldest entry is evicted once the buffer is full.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*Entry
	capacity int
	nextID   int64

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

var _ SubscribableStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding up to capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		entries:     make([]*Entry, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Log records an entry, assigning an ID and timestamp when missing.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	if entry.ID == "" {
		s.nextID++
		entry.ID = "frm-" + strconv.FormatInt(s.nextID, 10)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if len(s.entries) >= s.capacity {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	// Slow subscribers miss entries rather than block the transports.
	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- entry:
		default:
		}
	}
	s.subMu.RUnlock()
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter != nil && !filter.matches(e) {
			continue
		}
		result = append(result, e)
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

func (f *Filter) matches(e *Entry) bool {
	if f.Transport != "" && e.Transport != f.Transport {
		return false
	}
	if f.Conn != "" && e.Conn != f.Conn {
		return false
	}
	if f.Matched != nil && e.Matched != *f.Matched {
		return false
	}
	return true
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.capacity)
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribers returns the number of active subscribers.
func (s *MemoryStore) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscribers)
}

// Subscribe registers a buffered subscriber. Call the returned function to
// unsubscribe; it closes the channel.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	sub := make(Subscriber, subscriberBuffer)

	s.subMu.Lock()
	s.subscribers[sub] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, sub)
			s.subMu.Unlock()
			close(sub)
		})
	}
}
