package domain

import "time"

// Event is a state change published by the coordination layer after it commits.
// Origin is the opaque id of the connection that caused it, empty for
// request/response callers and background sweeps.
type Event interface {
	Name() string
	Room() RoomID
	Source() string
}

type LeaveReason string

const (
	LeaveExplicit   LeaveReason = "leave"
	LeaveMoved      LeaveReason = "moved"
	LeaveDisconnect LeaveReason = "disconnect"
	LeaveExpired    LeaveReason = "expired"
	LeaveDeleted    LeaveReason = "deleted"
)

type DisbandReason string

const (
	DisbandRequested DisbandReason = "disband"
	DisbandIdle      DisbandReason = "idle"
)

type RoomCreated struct {
	Info      RoomInfo
	CreatorID UserID
	At        time.Time
	Origin    string
}

type UserJoined struct {
	RoomID   RoomID
	UserID   UserID
	Nickname string
	At       time.Time
	Origin   string
}

type UserLeft struct {
	RoomID RoomID
	UserID UserID
	Reason LeaveReason
	At     time.Time
	Origin string
}

type RoomDisbanded struct {
	RoomID  RoomID
	By      UserID
	Reason  DisbandReason
	Members []UserID
	At      time.Time
	Origin  string
}

type MediaConfigUpdated struct {
	Info   RoomInfo
	By     UserID
	At     time.Time
	Origin string
}

func (e RoomCreated) Name() string   { return "roomCreated" }
func (e RoomCreated) Room() RoomID   { return e.Info.ID }
func (e RoomCreated) Source() string { return e.Origin }

func (e UserJoined) Name() string   { return "userJoined" }
func (e UserJoined) Room() RoomID   { return e.RoomID }
func (e UserJoined) Source() string { return e.Origin }

func (e UserLeft) Name() string   { return "userLeft" }
func (e UserLeft) Room() RoomID   { return e.RoomID }
func (e UserLeft) Source() string { return e.Origin }

func (e RoomDisbanded) Name() string   { return "roomDisbanded" }
func (e RoomDisbanded) Room() RoomID   { return e.RoomID }
func (e RoomDisbanded) Source() string { return e.Origin }

func (e MediaConfigUpdated) Name() string   { return "mediaConfigUpdated" }
func (e MediaConfigUpdated) Room() RoomID   { return e.Info.ID }
func (e MediaConfigUpdated) Source() string { return e.Origin }
