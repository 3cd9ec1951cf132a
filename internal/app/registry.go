package app

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrSessionClosed = errors.New("session closed")

// Locator reports the authoritative room of a user.
type Locator interface {
	RoomOf(uid domain.UserID) (domain.RoomID, bool)
}

// Session is the presence state of one live channel connection.
type Session struct {
	ID   core.SessionID
	Conn core.SignalConnection

	// op serializes coordination calls made through this session with its release.
	op       sync.Mutex
	released bool
	cancel   context.CancelFunc

	// guarded by Registry.mu
	userID domain.UserID
	roomID domain.RoomID
}

// Registry maps live sessions to user identities and room subscriptions.
// A session is subscribed to at most one room at a time.
type Registry struct {
	mu       sync.RWMutex
	loc      Locator
	sessions map[core.SessionID]*Session
	rooms    map[domain.RoomID]map[core.SessionID]*Session
	users    map[domain.UserID]map[core.SessionID]*Session
}

func NewRegistry(loc Locator) *Registry {
	return &Registry{
		loc:      loc,
		sessions: make(map[core.SessionID]*Session),
		rooms:    make(map[domain.RoomID]map[core.SessionID]*Session),
		users:    make(map[domain.UserID]map[core.SessionID]*Session),
	}
}

func (r *Registry) Open(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) *Session {
	s := &Session{ID: sid, Conn: conn, cancel: cancel}
	r.mu.Lock()
	r.sessions[sid] = s
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session opened")
	return s
}

func (r *Registry) Get(sid core.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	return s, ok
}

// Do runs fn while holding the session's op lock. It fails once the session was released,
// so nothing can bind a session whose disconnect already ran.
func (r *Registry) Do(s *Session, fn func() error) error {
	s.op.Lock()
	defer s.op.Unlock()
	if s.released {
		return ErrSessionClosed
	}
	return fn()
}

// Identity returns the bound user and subscribed room.
func (r *Registry) Identity(s *Session) (domain.UserID, domain.RoomID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return s.userID, s.roomID
}

// Bind attaches uid to the session and subscribes it to the user's current room.
// Must be called from within Do.
func (r *Registry) Bind(s *Session, uid domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.sessions[s.ID]; !live {
		return
	}
	if s.userID != uid {
		if s.userID != "" {
			removeIndex(r.users, s.userID, s.ID)
		}
		s.userID = uid
		if uid != "" {
			addIndex(r.users, uid, s)
		}
	}
	r.resubscribeLocked(s)
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID)).Str("user", string(uid)).Str("room", string(s.roomID)).Msg("bound session")
}

// Reconcile re-derives the subscription of every session bound to uid from the
// user's current room.
func (r *Registry) Reconcile(uid domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.users[uid] {
		r.resubscribeLocked(s)
	}
}

func (r *Registry) resubscribeLocked(s *Session) {
	var want domain.RoomID
	if s.userID != "" {
		want, _ = r.loc.RoomOf(s.userID)
	}
	r.subscribeLocked(s, want)
}

func (r *Registry) subscribeLocked(s *Session, room domain.RoomID) {
	if s.roomID == room {
		return
	}
	if s.roomID != "" {
		removeIndex(r.rooms, s.roomID, s.ID)
	}
	s.roomID = room
	if room != "" {
		addIndex(r.rooms, room, s)
	}
}

// UnsubscribeRoom drops every subscription to room and returns the affected sessions.
func (r *Registry) UnsubscribeRoom(room domain.RoomID) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.rooms[room]
	out := make([]*Session, 0, len(subs))
	for _, s := range subs {
		s.roomID = ""
		out = append(out, s)
	}
	delete(r.rooms, room)
	return out
}

// Release detaches the session exactly once and reports the identity it held. room is
// the last subscription, which may lag behind the user's membership. shared is true when
// another live session stays bound to the same user.
func (r *Registry) Release(s *Session) (uid domain.UserID, room domain.RoomID, shared, ok bool) {
	s.op.Lock()
	defer s.op.Unlock()
	if s.released {
		return "", "", false, false
	}
	s.released = true

	r.mu.Lock()
	uid, room = s.userID, s.roomID
	delete(r.sessions, s.ID)
	if room != "" {
		removeIndex(r.rooms, room, s.ID)
	}
	if uid != "" {
		removeIndex(r.users, uid, s.ID)
		shared = len(r.users[uid]) > 0
	}
	s.userID, s.roomID = "", ""
	r.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID)).Str("user", string(uid)).Str("room", string(room)).Msg("released session")
	return uid, room, shared, true
}

func (r *Registry) Subscribers(room domain.RoomID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.rooms[room]))
	for _, s := range r.rooms[room] {
		out = append(out, s)
	}
	return out
}

func (r *Registry) SessionsOf(uid domain.UserID) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.users[uid]))
	for _, s := range r.users[uid] {
		out = append(out, s)
	}
	return out
}

func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cancel stops the session's pumps; its release follows from the reader exiting.
func (r *Registry) Cancel(sid core.SessionID) bool {
	s, ok := r.Get(sid)
	if !ok {
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func addIndex[K comparable](m map[K]map[core.SessionID]*Session, key K, s *Session) {
	set, ok := m[key]
	if !ok {
		set = make(map[core.SessionID]*Session)
		m[key] = set
	}
	set[s.ID] = s
}

func removeIndex[K comparable](m map[K]map[core.SessionID]*Session, key K, sid core.SessionID) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, sid)
	if len(set) == 0 {
		delete(m, key)
	}
}
