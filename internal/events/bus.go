package events

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// BufferSize is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing events.
const BufferSize = 100

type subscriber struct {
	name string
	ch   chan Event
}

// Bus fans events out to per-room subscribers. Publishing never
// blocks: a full subscriber buffer drops the event for that
// subscriber and records the overflow.
type Bus struct {
	logger  zerolog.Logger
	mu      sync.RWMutex
	rooms   map[string][]*subscriber
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger.With().Str("component", "bus").Logger(),
		rooms:  make(map[string][]*subscriber),
	}
}

// Publish delivers an event to every subscriber of its room. Channel
// sends happen under the read lock; channels are only ever closed
// under the write lock, so a send never races a close.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.rooms[event.RoomID()] {
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn().
				Str("room", event.RoomID()).
				Str("event", event.Type()).
				Str("subscriber", sub.name).
				Msg("subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a named subscriber for a room and returns its
// event channel plus a cancel function. The channel closes on cancel
// and on room teardown.
func (b *Bus) Subscribe(roomID, name string) (<-chan Event, func()) {
	sub := &subscriber{name: name, ch: make(chan Event, BufferSize)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	b.rooms[roomID] = append(b.rooms[roomID], sub)
	b.logger.Debug().
		Str("room", roomID).
		Str("subscriber", name).
		Int("subscribers", len(b.rooms[roomID])).
		Msg("subscriber registered")

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.rooms[roomID]
			for i, s := range subs {
				if s == sub {
					b.rooms[roomID] = append(subs[:i], subs[i+1:]...)
					close(s.ch)
					break
				}
			}
			if len(b.rooms[roomID]) == 0 {
				delete(b.rooms, roomID)
			}
		})
	}
	return sub.ch, cancel
}

// CloseRoom removes every subscriber of a room, closing their
// channels. Later publishes to the room are no-ops.
func (b *Bus) CloseRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.rooms[roomID]
	for _, sub := range subs {
		close(sub.ch)
	}
	delete(b.rooms, roomID)

	if len(subs) > 0 {
		b.logger.Debug().
			Str("room", roomID).
			Int("subscribers", len(subs)).
			Msg("room closed")
	}
}

// Close tears down the whole bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for roomID, subs := range b.rooms {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.rooms, roomID)
	}
}

// Dropped returns the number of events lost to full subscriber
// buffers since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns how many subscribers a room currently has.
func (b *Bus) Subscribers(roomID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[roomID])
}
