package storage

import (
	"context"
	"sync"
)

// Ensure MemoryStore implements required interfaces
var _ Store = (*MemoryStore)(nil)
var _ Watcher = (*MemoryStore)(nil)

// MemoryStore keeps values in process memory. Several sessions sharing one
// MemoryStore behave like browser tabs sharing local storage.
type MemoryStore struct {
	mu          sync.RWMutex
	values      map[Key]string
	subscribers map[chan Change]struct{}
}

// NewMemoryStore creates a new, empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:      make(map[Key]string),
		subscribers: make(map[chan Change]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(_ context.Context, key Key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.values[key]; ok && old == value {
		return nil
	}
	s.values[key] = value
	s.publish(Change{Key: key, Value: value})
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	s.publish(Change{Key: key, Removed: true})
	return nil
}

// Len returns the number of stored keys
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Watch streams every change until ctx is done. Slow subscribers drop changes
// rather than blocking writers.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch, nil
}

// publish must be called with s.mu held
func (s *MemoryStore) publish(c Change) {
	for ch := range s.subscribers {
		select {
		case ch <- c:
		default:
		}
	}
}
