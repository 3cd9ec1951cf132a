package signal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
)

func encode(event string, v any) (core.Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type userJoinedPayload struct {
	UserID    domain.UserID `json:"userId"`
	Nickname  string        `json:"nickname"`
	RoomID    domain.RoomID `json:"roomId"`
	Timestamp time.Time     `json:"timestamp"`
}

type userLeftPayload struct {
	UserID    domain.UserID      `json:"userId"`
	RoomID    domain.RoomID      `json:"roomId"`
	Reason    domain.LeaveReason `json:"reason"`
	Timestamp time.Time          `json:"timestamp"`
}

type roomDisbandedPayload struct {
	RoomID      domain.RoomID        `json:"roomId"`
	Reason      domain.DisbandReason `json:"reason"`
	DisbandedAt time.Time            `json:"disbandedAt"`
}

type messagePayload struct {
	UserID    domain.UserID `json:"userId"`
	Nickname  string        `json:"nickname"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// Codec renders domain events as channel frames.
type Codec struct{}

func (Codec) Encode(ev domain.Event) (core.Frame, error) {
	var payload any
	switch e := ev.(type) {
	case domain.UserJoined:
		payload = userJoinedPayload{UserID: e.UserID, Nickname: e.Nickname, RoomID: e.RoomID, Timestamp: e.At}
	case domain.UserLeft:
		payload = userLeftPayload{UserID: e.UserID, RoomID: e.RoomID, Reason: e.Reason, Timestamp: e.At}
	case domain.RoomDisbanded:
		payload = roomDisbandedPayload{RoomID: e.RoomID, Reason: e.Reason, DisbandedAt: e.At}
	case domain.RoomCreated:
		payload = e.Info
	case domain.MediaConfigUpdated:
		payload = e.Info
	default:
		return nil, fmt.Errorf("no wire form for event %q", ev.Name())
	}
	return encode(ev.Name(), payload)
}
