package app

import "github.com/dkeye/Lobby/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a session whose outbound buffer is full.
// room is empty for deliveries that are not scoped to a room.
type Policy interface {
	OnBackPressure(room domain.RoomID, sess *Session) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room domain.RoomID, sess *Session) BackpressureAction {
	return KickMember
}
