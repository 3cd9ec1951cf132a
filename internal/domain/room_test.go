package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRoomDefaults(t *testing.T) {
	now := time.Now()
	r := NewRoom("abc", "", "alice", MediaEndpointConfig{}, 0, now)

	assert.Equal(t, RoomName("Room-abc"), r.Name)
	assert.Equal(t, DefaultMaxUsers, r.MaxUsers)
	assert.True(t, r.IsActive)
	assert.True(t, r.IsCreator("alice"))
	assert.Zero(t, r.Info().UserCount)
}

func TestRoomCountFollowsMembers(t *testing.T) {
	now := time.Now()
	r := NewRoom("abc", "Lounge", "alice", MediaEndpointConfig{}, 2, now)
	r.Members["alice"] = NewUser("alice", "", now)
	assert.False(t, r.IsFull())
	r.Members["bob"] = NewUser("bob", "Bobby", now)
	assert.True(t, r.IsFull())
	assert.Equal(t, 2, r.Info().UserCount)
	assert.True(t, r.HasMember("bob"))
}

func TestUserSnapshotCopiesAvatar(t *testing.T) {
	u := NewUser("alice", "", time.Now())
	assert.Equal(t, "alice", u.Nickname)
	a := "one.png"
	u.Avatar = &a

	snap := u.Snapshot()
	*u.Avatar = "two.png"
	assert.Equal(t, "one.png", *snap.Avatar)
}

func TestParseUserTypeAndStatus(t *testing.T) {
	typ, err := ParseUserType("")
	assert.NoError(t, err)
	assert.Equal(t, UserTypeUser, typ)
	typ, err = ParseUserType("admin")
	assert.NoError(t, err)
	assert.Equal(t, UserTypeAdmin, typ)
	_, err = ParseUserType("root")
	assert.ErrorIs(t, err, ErrBadInput)

	st, err := ParseUserStatus("inactive")
	assert.NoError(t, err)
	assert.Equal(t, UserStatusInactive, st)
	_, err = ParseUserStatus("")
	assert.ErrorIs(t, err, ErrBadInput)
}
