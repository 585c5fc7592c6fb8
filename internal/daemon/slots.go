package daemon

import (
	"context"
	"sync"
)

// Slots is the registry of rooms with a running game. A room holds at most
// one slot, identified by the token of the game that acquired it.
type Slots interface {
	// TryAcquire claims the room for token. It returns false when another
	// game already holds it.
	TryAcquire(ctx context.Context, room, token string) (bool, error)

	// Release frees the room if token still holds it.
	Release(ctx context.Context, room, token string) error

	// Refresh extends the hold of token on room. Backends without expiry
	// do nothing.
	Refresh(ctx context.Context, room, token string) error

	// Close releases backend resources.
	Close() error
}

// MemorySlots is a process-local registry.
type MemorySlots struct {
	mu    sync.Mutex
	rooms map[string]string
}

func NewMemorySlots() *MemorySlots {
	return &MemorySlots{rooms: make(map[string]string)}
}

func (s *MemorySlots) TryAcquire(_ context.Context, room, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.rooms[room]; busy {
		return false, nil
	}
	s.rooms[room] = token
	return true, nil
}

func (s *MemorySlots) Release(_ context.Context, room, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rooms[room] == token {
		delete(s.rooms, room)
	}
	return nil
}

func (s *MemorySlots) Refresh(context.Context, string, string) error { return nil }

// Held returns the number of occupied rooms.
func (s *MemorySlots) Held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

func (s *MemorySlots) Close() error { return nil }
