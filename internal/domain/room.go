package domain

import "time"

type (
	RoomName string
	RoomID   string
)

const DefaultMaxUsers = 50

// Room keeps its members keyed by user id. The member count is always len(Members);
// there is no separately tracked counter.
type Room struct {
	ID           RoomID
	Name         RoomName
	CreatorID    UserID
	CreatedAt    time.Time
	LastActiveAt time.Time
	MaxUsers     int
	Media        MediaEndpointConfig
	Members      map[UserID]*User
	IsActive     bool
}

func NewRoom(id RoomID, name RoomName, creator UserID, media MediaEndpointConfig, maxUsers int, now time.Time) *Room {
	if name == "" {
		name = RoomName("Room-" + string(id))
	}
	if maxUsers <= 0 {
		maxUsers = DefaultMaxUsers
	}
	return &Room{
		ID:           id,
		Name:         name,
		CreatorID:    creator,
		CreatedAt:    now,
		LastActiveAt: now,
		MaxUsers:     maxUsers,
		Media:        media,
		Members:      make(map[UserID]*User),
		IsActive:     true,
	}
}

func (r *Room) MemberCount() int { return len(r.Members) }

func (r *Room) IsFull() bool { return len(r.Members) >= r.MaxUsers }

func (r *Room) HasMember(id UserID) bool {
	_, ok := r.Members[id]
	return ok
}

func (r *Room) IsCreator(id UserID) bool { return r.CreatorID == id }

func (r *Room) Touch(now time.Time) { r.LastActiveAt = now }

// RoomInfo is the read-only view handed to both entry points.
type RoomInfo struct {
	ID           RoomID              `json:"roomId"`
	Name         RoomName            `json:"roomName"`
	CreatorID    UserID              `json:"creator"`
	CreatedAt    time.Time           `json:"createdAt"`
	UserCount    int                 `json:"userCount"`
	MaxUsers     int                 `json:"maxUsers"`
	IsActive     bool                `json:"isActive"`
	LastActiveAt time.Time           `json:"lastActive"`
	Media        MediaEndpointConfig `json:"mediaConfig"`
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:           r.ID,
		Name:         r.Name,
		CreatorID:    r.CreatorID,
		CreatedAt:    r.CreatedAt,
		UserCount:    r.MemberCount(),
		MaxUsers:     r.MaxUsers,
		IsActive:     r.IsActive,
		LastActiveAt: r.LastActiveAt,
		Media:        r.Media,
	}
}

// RoomSnapshot is a room view together with copies of its members.
type RoomSnapshot struct {
	RoomInfo
	Members []User `json:"users"`
}
