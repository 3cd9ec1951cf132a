package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSweepTarget struct {
	mock.Mock
}

func (m *mockSweepTarget) StaleMembers(cutoff time.Time) []core.StaleMember {
	args := m.Called(cutoff)
	return args.Get(0).([]core.StaleMember)
}

func (m *mockSweepTarget) EvictStaleMember(room domain.RoomID, uid domain.UserID, cutoff time.Time) (bool, error) {
	args := m.Called(room, uid, cutoff)
	return args.Bool(0), args.Error(1)
}

func (m *mockSweepTarget) IdleRooms(cutoff time.Time) []domain.RoomID {
	args := m.Called(cutoff)
	return args.Get(0).([]domain.RoomID)
}

func (m *mockSweepTarget) RemoveIdleRoom(room domain.RoomID, cutoff time.Time) (bool, error) {
	args := m.Called(room, cutoff)
	return args.Bool(0), args.Error(1)
}

func TestSweepUsesConfiguredCutoffs(t *testing.T) {
	target := &mockSweepTarget{}
	defer target.AssertExpectations(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	userCutoff := now.Add(-30 * time.Minute)
	roomCutoff := now.Add(-time.Hour)

	target.On("StaleMembers", userCutoff).Return([]core.StaleMember{
		{RoomID: "r1", UserID: "alice"},
		{RoomID: "r1", UserID: "bob"},
		{RoomID: "r2", UserID: "carol"},
	}).Once()
	target.On("EvictStaleMember", domain.RoomID("r1"), domain.UserID("alice"), userCutoff).Return(true, nil).Once()
	target.On("EvictStaleMember", domain.RoomID("r1"), domain.UserID("bob"), userCutoff).Return(false, nil).Once()
	target.On("EvictStaleMember", domain.RoomID("r2"), domain.UserID("carol"), userCutoff).Return(false, domain.ErrNotMember).Once()
	target.On("IdleRooms", roomCutoff).Return([]domain.RoomID{"r3", "r4"}).Once()
	target.On("RemoveIdleRoom", domain.RoomID("r3"), roomCutoff).Return(true, nil).Once()
	target.On("RemoveIdleRoom", domain.RoomID("r4"), roomCutoff).Return(false, errors.New("boom")).Once()

	r := NewReaper(target, ReaperConfig{Enabled: true, Interval: time.Minute, OfflineTimeout: 30 * time.Minute, IdleTimeout: time.Hour}, nil)
	users, rooms := r.Sweep(now)
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, rooms)
}

func TestDisabledReaperWaitsForCancel(t *testing.T) {
	target := &mockSweepTarget{}
	defer target.AssertExpectations(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewReaper(target, ReaperConfig{Enabled: false, Interval: time.Millisecond}, nil).Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disabled reaper did not stop")
	}
}

func TestReaperRemovesStaleStateThroughRouting(t *testing.T) {
	h := newHarness(t)
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	_, err = h.state.JoinRoom("r1", "bob", "", "")
	require.NoError(t, err)
	_, watcher := h.open(t, "w", "bob")

	h.clock.Advance(45 * time.Minute)
	_, err = h.state.Heartbeat("bob", "r1")
	require.NoError(t, err)

	r := NewReaper(h.state, ReaperConfig{Enabled: true, Interval: time.Minute, OfflineTimeout: 30 * time.Minute, IdleTimeout: time.Hour}, h.clock.Now)
	users, rooms := r.Sweep(h.clock.Now())
	assert.Equal(t, 1, users)
	assert.Zero(t, rooms)
	assert.Equal(t, []string{"userLeft:r1"}, watcher.received())

	_, err = h.state.User("alice")
	assert.NoError(t, err, "expired members keep their record")

	_, err = h.state.LeaveRoom("r1", "bob", domain.LeaveExplicit, "")
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fast := NewReaper(h.state, ReaperConfig{Enabled: true, Interval: 5 * time.Millisecond, OfflineTimeout: 30 * time.Minute, IdleTimeout: time.Hour}, h.clock.Now)
	go func() { _ = fast.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := h.state.Room("r1")
		return errors.Is(err, domain.ErrRoomNotFound)
	}, time.Second, 10*time.Millisecond)
}
