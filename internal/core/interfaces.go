package core

import (
	"errors"

	"github.com/dkeye/Lobby/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw encoded payload ready for the wire.
type Frame []byte

// SessionID identifies one live event-channel connection.
type SessionID string

// SignalConnection abstracts the event channel transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Publisher receives domain events once a mutation has committed.
type Publisher interface {
	Publish(domain.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(domain.Event) {}
