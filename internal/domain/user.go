// Package domain contains entities and their value rules, no locking or transport.
package domain

import "time"

type UserID string

type UserType string

const (
	UserTypeUser  UserType = "user"
	UserTypeAdmin UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is a registry record. RoomID is empty when the user belongs to no room.
type User struct {
	ID           UserID     `json:"userId"`
	Nickname     string     `json:"nickname"`
	Type         UserType   `json:"type"`
	Status       UserStatus `json:"status"`
	Avatar       *string    `json:"avatar"`
	RoomID       RoomID     `json:"roomId,omitempty"`
	IsOnline     bool       `json:"isOnline"`
	LastActiveAt time.Time  `json:"lastActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	JoinedAt     time.Time  `json:"joinedAt,omitzero"`
}

// NewUser builds an online user with no room. An empty nickname falls back to the id.
func NewUser(id UserID, nickname string, now time.Time) *User {
	if nickname == "" {
		nickname = string(id)
	}
	return &User{
		ID:           id,
		Nickname:     nickname,
		Type:         UserTypeUser,
		Status:       UserStatusActive,
		IsOnline:     true,
		LastActiveAt: now,
		CreatedAt:    now,
	}
}

func (u *User) Touch(now time.Time) {
	u.LastActiveAt = now
}

func (u *User) IsAdmin() bool {
	return u.Type == UserTypeAdmin
}

// Snapshot returns a copy safe to hand out after the registry lock is released.
func (u *User) Snapshot() User {
	cp := *u
	if u.Avatar != nil {
		a := *u.Avatar
		cp.Avatar = &a
	}
	return cp
}

// UserPatch carries optional field updates; nil fields are left untouched.
type UserPatch struct {
	Nickname *string
	Avatar   *string
	Status   *UserStatus
}

func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case "", UserTypeUser:
		return UserTypeUser, nil
	case UserTypeAdmin:
		return UserTypeAdmin, nil
	}
	return "", badInput("unknown user type %q", s)
}

func ParseUserStatus(s string) (UserStatus, error) {
	switch UserStatus(s) {
	case UserStatusActive, UserStatusInactive:
		return UserStatus(s), nil
	}
	return "", badInput("unknown user status %q", s)
}
