package app

import (
	"sync"

	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// Bus delivers every published event to every subscriber, in publish order.
// Publish blocks while a subscriber's buffer is full, so consumers must keep
// draining until the bus is closed.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan domain.Event
	size   int
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus{size: buffer}
}

func (b *Bus) Subscribe() <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan domain.Event, b.size)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Warn().Str("module", "app.bus").Str("event", ev.Name()).Msg("publish after close dropped")
		return
	}
	for _, ch := range b.subs {
		ch <- ev
	}
}

// Close ends every subscription once pending events are handed over.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
