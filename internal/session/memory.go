package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	mu    sync.Mutex
	state State
	live  bool
}

// MemoryStore keeps sessions in process memory. Updates to one session are
// serialized; different sessions do not contend.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock is NewMemoryStore with the clock used to stamp
// UpdatedAt.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{sessions: map[string]*memoryEntry{}, now: now}
}

func (s *MemoryStore) entry(id string, create bool) *memoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[id]
	if !ok && create {
		entry = &memoryEntry{}
		s.sessions[id] = entry
	}
	return entry
}

func (s *MemoryStore) Get(ctx context.Context, id string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	entry := s.entry(id, false)
	if entry == nil {
		return State{}, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.live {
		return State{}, ErrNotFound
	}
	return entry.state.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*State) error) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	for {
		entry := s.entry(id, true)
		entry.mu.Lock()

		s.mu.Lock()
		current := s.sessions[id]
		s.mu.Unlock()
		if current != entry {
			// Deleted or pruned while waiting for the lock.
			entry.mu.Unlock()
			continue
		}

		working := entry.state.Clone()
		if err := fn(&working); err != nil {
			entry.mu.Unlock()
			return State{}, err
		}
		working.UpdatedAt = s.now().UTC()
		entry.state = working
		entry.live = true
		out := working.Clone()
		entry.mu.Unlock()
		return out, nil
	}
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// PruneIdle drops sessions whose last update happened before before, along with
// entries left behind by failed first updates.
func (s *MemoryStore) PruneIdle(ctx context.Context, before time.Time, limit int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	for id, entry := range s.sessions {
		if limit > 0 && pruned >= int64(limit) {
			break
		}
		if !entry.mu.TryLock() {
			continue
		}
		if !entry.live || entry.state.UpdatedAt.Before(before) {
			delete(s.sessions, id)
			pruned++
		}
		entry.mu.Unlock()
	}
	return pruned, nil
}
