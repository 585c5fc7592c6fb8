// Package events fans out game activity to API subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types.
const (
	GameStarted = "game_started"
	Turn        = "turn"    // a letter was played
	Timeout     = "timeout" // a turn expired without answer
	GameOver    = "game_over"
	Status      = "status" // daemon and worker status
	Error       = "error"
)

// Event is a single item of the stream.
type Event struct {
	Type     string `json:"type"`
	Room     string `json:"room,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	Player   string `json:"player,omitempty"`
	Letter   string `json:"letter,omitempty"`
	Hit      *bool  `json:"hit,omitempty"`
	Revealed string `json:"revealed,omitempty"`
	Lives    *int   `json:"lives,omitempty"`
	Message  string `json:"message,omitempty"`
	Level    string `json:"level,omitempty"` // for status: "info", "warn", "error"
	TS       string `json:"ts"`
}

// Marshal serializes an event to JSON with timestamp.
func (e Event) Marshal() []byte {
	if e.TS == "" {
		e.TS = time.Now().Format(time.RFC3339)
	}
	b, _ := json.Marshal(e)
	return b
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// Bus fans out events to all subscribers. Subscribers that fall behind
// miss events rather than block publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	recent    []Event
	recentMu  sync.RWMutex
	maxRecent int
}

// NewBus creates a bus keeping the last maxRecent events (200 if <= 0).
func NewBus(maxRecent int) *Bus {
	if maxRecent <= 0 {
		maxRecent = 200
	}
	return &Bus{
		subscribers: make(map[*subscriber]struct{}),
		maxRecent:   maxRecent,
	}
}

// Publish sends an event to all connected subscribers without blocking.
func (b *Bus) Publish(e Event) {
	if e.TS == "" {
		e.TS = time.Now().Format(time.RFC3339)
	}

	b.recentMu.Lock()
	b.recent = append(b.recent, e)
	if len(b.recent) > b.maxRecent {
		b.recent = b.recent[len(b.recent)-b.maxRecent:]
	}
	b.recentMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub.ch <- e:
		default:
			// too slow, they can catch up from Recent
		}
	}
}

// Subscribe registers a subscriber. The caller must pass the returned done
// channel to Unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, chan struct{}) {
	sub := &subscriber{
		ch:   make(chan Event, 64),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	return sub.ch, sub.done
}

// Unsubscribe removes a subscriber and closes its event channel.
func (b *Bus) Unsubscribe(done chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		if sub.done == done {
			close(sub.ch)
			delete(b.subscribers, sub)
			return
		}
	}
}

// Recent returns up to the last n events, oldest first.
func (b *Bus) Recent(n int) []Event {
	b.recentMu.RLock()
	defer b.recentMu.RUnlock()

	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	result := make([]Event, n)
	copy(result, b.recent[len(b.recent)-n:])
	return result
}

// SubscriberCount returns the number of connected subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
