package app

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []string
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, string(f))
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// nameCodec encodes an event as "name:room".
type nameCodec struct{}

func (nameCodec) Encode(ev domain.Event) (core.Frame, error) {
	return core.Frame(ev.Name() + ":" + string(ev.Room())), nil
}

type publishFunc func(domain.Event)

func (f publishFunc) Publish(ev domain.Event) { f(ev) }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	state  *core.State
	reg    *Registry
	router *Router
	clock  *testClock
}

// newHarness wires the state straight into the router so events are routed synchronously.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}}
	h.state = core.NewState(core.Options{MaxUsers: 10, Now: h.clock.Now}, publishFunc(func(ev domain.Event) {
		h.router.Handle(ev)
	}))
	h.reg = NewRegistry(h.state)
	h.router = NewRouter(h.reg, SimplePolicy{}, nameCodec{})
	return h
}

func (h *harness) open(t *testing.T, sid string, uid domain.UserID) (*Session, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	s := h.reg.Open(core.SessionID(sid), conn, nil)
	if uid != "" {
		require.NoError(t, h.reg.Do(s, func() error {
			h.reg.Bind(s, uid)
			return nil
		}))
	}
	return s, conn
}

func testMedia() *domain.MediaConfigInput {
	return &domain.MediaConfigInput{Host: "media.local", Port: 443}
}

func hasFrame(frames []string, prefix string) bool {
	for _, f := range frames {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

func TestBusDeliversInOrderToEverySubscriber(t *testing.T) {
	bus := NewBus(8)
	a := bus.Subscribe()
	b := bus.Subscribe()

	events := []domain.Event{
		domain.RoomCreated{Info: domain.RoomInfo{ID: "r1"}},
		domain.UserJoined{RoomID: "r1", UserID: "bob"},
		domain.UserLeft{RoomID: "r1", UserID: "bob"},
	}
	for _, ev := range events {
		bus.Publish(ev)
	}
	for _, ch := range []<-chan domain.Event{a, b} {
		for _, want := range events {
			assert.Equal(t, want, <-ch)
		}
	}

	bus.Close()
	_, open := <-a
	assert.False(t, open)
	assert.NotPanics(t, func() { bus.Publish(events[0]) })
	_, open = <-bus.Subscribe()
	assert.False(t, open, "subscriptions after close start closed")
}

func TestBindFollowsAuthoritativeRoom(t *testing.T) {
	h := newHarness(t)
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)

	s, _ := h.open(t, "s1", "alice")
	uid, room := h.reg.Identity(s)
	assert.Equal(t, domain.UserID("alice"), uid)
	assert.Equal(t, domain.RoomID("r1"), room)
	assert.Len(t, h.reg.Subscribers("r1"), 1)

	stranger, _ := h.open(t, "s2", "nobody")
	_, room = h.reg.Identity(stranger)
	assert.Empty(t, room)
	assert.Len(t, h.reg.SessionsOf("nobody"), 1)
}

func TestReleaseRunsOnce(t *testing.T) {
	h := newHarness(t)
	canceled := 0
	s := h.reg.Open("s1", &fakeConn{}, func() { canceled++ })

	_, _, _, ok := h.reg.Release(s)
	assert.True(t, ok)
	_, _, _, ok = h.reg.Release(s)
	assert.False(t, ok)
	assert.Equal(t, 1, canceled)
	assert.Zero(t, h.reg.Len())

	err := h.reg.Do(s, func() error {
		t.Fatal("op ran on a released session")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestReleaseReportsSharedSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	first, _ := h.open(t, "tab-1", "alice")
	second, _ := h.open(t, "tab-2", "alice")

	uid, room, shared, ok := h.reg.Release(first)
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), uid)
	assert.Equal(t, domain.RoomID("r1"), room)
	assert.True(t, shared)

	_, _, shared, ok = h.reg.Release(second)
	require.True(t, ok)
	assert.False(t, shared)
	assert.Empty(t, h.reg.Subscribers("r1"))
}

func TestRouterBroadcastsJoinToOthersOnly(t *testing.T) {
	h := newHarness(t)
	a1, aConn := h.open(t, "a1", "alice")
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia(), Origin: string(a1.ID)})
	require.NoError(t, err)

	b1, b1Conn := h.open(t, "b1", "bob")
	_, b2Conn := h.open(t, "b2", "bob")
	_, err = h.state.JoinRoom("r1", "bob", "", string(b1.ID))
	require.NoError(t, err)

	assert.Equal(t, []string{"roomCreated:r1", "userJoined:r1"}, aConn.received())
	assert.False(t, hasFrame(b1Conn.received(), "userJoined"))
	assert.False(t, hasFrame(b2Conn.received(), "userJoined"), "every session of the joiner is excluded")
	assert.Len(t, h.reg.Subscribers("r1"), 3)

	_, err = h.state.LeaveRoom("r1", "bob", domain.LeaveExplicit, string(b1.ID))
	require.NoError(t, err)
	assert.Equal(t, "userLeft:r1", aConn.received()[2])
	assert.Len(t, h.reg.Subscribers("r1"), 1)
}

func TestRouterMoveUpdatesSubscriptions(t *testing.T) {
	h := newHarness(t)
	_, aConn := h.open(t, "a1", "alice")
	_, dConn := h.open(t, "d1", "dave")
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "a", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	_, err = h.state.CreateRoom(core.CreateRoomParams{RoomID: "b", CreatorID: "dave", Media: testMedia()})
	require.NoError(t, err)

	c1, _ := h.open(t, "c1", "carol")
	_, err = h.state.JoinRoom("a", "carol", "", string(c1.ID))
	require.NoError(t, err)
	_, err = h.state.JoinRoom("b", "carol", "", string(c1.ID))
	require.NoError(t, err)

	_, room := h.reg.Identity(c1)
	assert.Equal(t, domain.RoomID("b"), room)
	a := aConn.received()
	assert.Equal(t, []string{"userJoined:a", "userLeft:a"}, a[len(a)-2:])
	assert.Equal(t, "userJoined:b", dConn.received()[len(dConn.received())-1])
}

func TestRouterDisbandUnsubscribesMembers(t *testing.T) {
	h := newHarness(t)
	a1, _ := h.open(t, "a1", "alice")
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	_, err = h.state.JoinRoom("r1", "bob", "", "")
	require.NoError(t, err)
	b1, bConn := h.open(t, "b1", "bob")

	_, _, err = h.state.DisbandRoom("r1", "alice", string(a1.ID))
	require.NoError(t, err)

	assert.Contains(t, bConn.received(), "roomDisbanded:r1")
	assert.Empty(t, h.reg.Subscribers("r1"))
	_, room := h.reg.Identity(b1)
	assert.Empty(t, room)
}

func TestRouterKicksSlowSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	_, slow := h.open(t, "slow", "alice")
	_, err = h.state.JoinRoom("r1", "bob", "", "")
	require.NoError(t, err)
	_, healthy := h.open(t, "ok", "bob")
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	sent := h.router.BroadcastRoom("r1", core.Frame("ping"), nil)
	assert.Equal(t, 1, sent)
	assert.True(t, slow.isClosed())
	assert.Equal(t, []string{"ping"}, healthy.received())
}

func TestRouterPreservesPublishOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.state.CreateRoom(core.CreateRoomParams{RoomID: "r1", CreatorID: "alice", Media: testMedia()})
	require.NoError(t, err)
	_, conn := h.open(t, "a1", "alice")

	var want []string
	for _, uid := range []domain.UserID{"u1", "u2", "u3"} {
		_, err := h.state.JoinRoom("r1", uid, "", "")
		require.NoError(t, err)
		want = append(want, "userJoined:r1")
	}
	_, err = h.state.LeaveRoom("r1", "u2", domain.LeaveExplicit, "")
	require.NoError(t, err)
	want = append(want, "userLeft:r1")

	assert.Equal(t, want, conn.received())
}

func TestReleaseSharesWithSessionsOfTheSameUserOnly(t *testing.T) {
	h := newHarness(t)
	first, _ := h.open(t, "tab-1", "alice")
	h.open(t, "tab-2", "alice")
	other, _ := h.open(t, "tab-3", "bob")

	_, room, shared, ok := h.reg.Release(first)
	require.True(t, ok)
	assert.Empty(t, room)
	assert.True(t, shared, "alice still has tab-2 open")

	_, _, shared, ok = h.reg.Release(other)
	require.True(t, ok)
	assert.False(t, shared)
}
