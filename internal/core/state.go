package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Lobby/internal/domain"
)

// maxRetries bounds the optimistic re-lock loop used when a user's current room
// changes between lookup and lock acquisition.
const maxRetries = 64

type Options struct {
	MaxUsers int
	AdminIDs []domain.UserID
	Now      func() time.Time
}

// roomEntry serializes every read-then-write on one room.
// gone is set (under both locks) once the room left the registry.
type roomEntry struct {
	mu   sync.Mutex
	room *domain.Room
	gone bool
}

// State is the in-memory room and user registry shared by both entry points.
//
// Lock order: room entry locks in ascending room id, then State.mu.
// Room members and user records are only written while holding State.mu for
// writing, so snapshot reads need nothing but the read lock. Events are published
// after State.mu is released but before the room locks are, which keeps per-room
// event order equal to commit order.
type State struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomID]*roomEntry
	users    map[domain.UserID]*domain.User
	maxUsers int
	admins   map[domain.UserID]struct{}
	now      func() time.Time
	pub      Publisher
}

func NewState(opts Options, pub Publisher) *State {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxUsers <= 0 {
		opts.MaxUsers = domain.DefaultMaxUsers
	}
	if pub == nil {
		pub = nopPublisher{}
	}
	admins := make(map[domain.UserID]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}
	return &State{
		rooms:    make(map[domain.RoomID]*roomEntry),
		users:    make(map[domain.UserID]*domain.User),
		maxUsers: opts.MaxUsers,
		admins:   admins,
		now:      opts.Now,
		pub:      pub,
	}
}

func (s *State) Now() time.Time { return s.now() }

func (s *State) entry(id domain.RoomID) (*roomEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[id]
	return e, ok
}

func (s *State) currentRoom(uid domain.UserID) domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[uid]; ok {
		return u.RoomID
	}
	return ""
}

// lockRooms locks the given entries in ascending room id order, skipping nils
// and duplicates, and returns the matching unlock.
func lockRooms(entries ...*roomEntry) func() {
	set := make([]*roomEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil && !slices.Contains(set, e) {
			set = append(set, e)
		}
	}
	slices.SortFunc(set, func(a, b *roomEntry) int { return cmp.Compare(a.room.ID, b.room.ID) })
	for _, e := range set {
		e.mu.Lock()
	}
	return func() {
		for i := len(set) - 1; i >= 0; i-- {
			set[i].mu.Unlock()
		}
	}
}

func (s *State) isAdminLocked(uid domain.UserID) bool {
	if _, ok := s.admins[uid]; ok {
		return true
	}
	u, ok := s.users[uid]
	return ok && u.IsAdmin()
}

func (s *State) publish(events ...domain.Event) {
	for _, ev := range events {
		if ev != nil {
			s.pub.Publish(ev)
		}
	}
}

func snapshotLocked(r *domain.Room) domain.RoomSnapshot {
	members := make([]domain.User, 0, len(r.Members))
	for _, u := range r.Members {
		members = append(members, u.Snapshot())
	}
	slices.SortFunc(members, func(a, b domain.User) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return domain.RoomSnapshot{RoomInfo: r.Info(), Members: members}
}

// Rooms lists every room ordered by creation time.
func (s *State) Rooms() []domain.RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(s.rooms))
	for _, e := range s.rooms {
		out = append(out, e.room.Info())
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (s *State) Room(id domain.RoomID) (domain.RoomInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[id]
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	return e.room.Info(), nil
}

func (s *State) RoomMembers(id domain.RoomID) (domain.RoomSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[id]
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return snapshotLocked(e.room), nil
}

func (s *State) User(id domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u.Snapshot(), nil
}

// RoomOf reports the room the user currently belongs to.
func (s *State) RoomOf(id domain.UserID) (domain.RoomID, bool) {
	room := s.currentRoom(id)
	return room, room != ""
}

type Stats struct {
	Rooms       int `json:"rooms"`
	TotalUsers  int `json:"totalUsers"`
	OnlineUsers int `json:"onlineUsers"`
	ActiveRooms int `json:"activeRooms"`
}

func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Rooms: len(s.rooms), TotalUsers: len(s.users)}
	for _, u := range s.users {
		if u.IsOnline {
			st.OnlineUsers++
		}
	}
	for _, e := range s.rooms {
		if e.room.IsActive {
			st.ActiveRooms++
		}
	}
	return st
}

// CheckInvariants verifies the cross-entity rules on a consistent snapshot.
func (s *State) CheckInvariants() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[domain.UserID]domain.RoomID)
	for id, e := range s.rooms {
		r := e.room
		if r.ID != id {
			return fmt.Errorf("room key %q holds room %q", id, r.ID)
		}
		if r.MemberCount() > r.MaxUsers {
			return fmt.Errorf("room %q has %d members, max %d", id, r.MemberCount(), r.MaxUsers)
		}
		for uid, u := range r.Members {
			if prev, dup := seen[uid]; dup {
				return fmt.Errorf("user %q is a member of %q and %q", uid, prev, id)
			}
			seen[uid] = id
			if reg, ok := s.users[uid]; !ok || reg != u {
				return fmt.Errorf("member %q of room %q is not the registry record", uid, id)
			}
			if u.RoomID != id {
				return fmt.Errorf("member %q of room %q points at room %q", uid, id, u.RoomID)
			}
		}
	}
	for uid, u := range s.users {
		if u.ID != uid {
			return fmt.Errorf("user key %q holds user %q", uid, u.ID)
		}
		if u.RoomID == "" {
			continue
		}
		e, ok := s.rooms[u.RoomID]
		if !ok {
			return fmt.Errorf("user %q points at missing room %q", uid, u.RoomID)
		}
		if !e.room.HasMember(uid) {
			return fmt.Errorf("user %q points at room %q which does not list it", uid, u.RoomID)
		}
	}
	return nil
}
