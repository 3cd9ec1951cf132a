package core

import (
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type CreateUserParams struct {
	UserID   domain.UserID
	Nickname string
	Type     domain.UserType
	Avatar   *string
}

// CreateUser registers a user outside of any room.
func (s *State) CreateUser(p CreateUserParams) (domain.User, error) {
	if p.UserID == "" {
		return domain.User{}, domain.Errorf(domain.ErrBadInput, "user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.UserID]; ok {
		return domain.User{}, domain.Errorf(domain.ErrConflict, "user %q already exists", p.UserID)
	}
	u := domain.NewUser(p.UserID, p.Nickname, s.now())
	if p.Type != "" {
		u.Type = p.Type
	}
	u.Avatar = p.Avatar
	s.users[u.ID] = u
	log.Info().Str("module", "core.state").Str("user", string(u.ID)).Msg("user created")
	return u.Snapshot(), nil
}

// UpdateUser applies the non-nil fields of patch.
func (s *State) UpdateUser(id domain.UserID, patch domain.UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if patch.Nickname != nil && *patch.Nickname != "" {
		u.Nickname = *patch.Nickname
	}
	if patch.Avatar != nil {
		a := *patch.Avatar
		u.Avatar = &a
	}
	if patch.Status != nil {
		u.Status = *patch.Status
	}
	u.Touch(s.now())
	return u.Snapshot(), nil
}

// DeleteUser hard-deletes the user record, leaving its room first.
func (s *State) DeleteUser(id domain.UserID, origin string) (domain.User, error) {
	for range maxRetries {
		cur := s.currentRoom(id)
		var e *roomEntry
		if cur != "" {
			var ok bool
			if e, ok = s.entry(cur); !ok {
				continue
			}
		}
		unlock := lockRooms(e)

		s.mu.Lock()
		u, ok := s.users[id]
		if !ok {
			s.mu.Unlock()
			unlock()
			return domain.User{}, domain.ErrUserNotFound
		}
		if u.RoomID != cur || (e != nil && e.gone) {
			s.mu.Unlock()
			unlock()
			continue
		}
		now := s.now()
		var left domain.Event
		if e != nil {
			if _, err := removeMemberLocked(e.room, id, now); err == nil {
				left = domain.UserLeft{RoomID: cur, UserID: id, Reason: domain.LeaveDeleted, At: now, Origin: origin}
			}
		}
		delete(s.users, id)
		snap := u.Snapshot()
		s.mu.Unlock()

		s.publish(left)
		unlock()
		log.Info().Str("module", "core.state").Str("user", string(id)).Msg("user deleted")
		return snap, nil
	}
	return domain.User{}, domain.Errorf(domain.ErrInternal, "delete user %q: membership kept changing", id)
}

// Heartbeat refreshes activity. With a room id the user must be a member of that room.
func (s *State) Heartbeat(id domain.UserID, roomID domain.RoomID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	now := s.now()
	if roomID != "" {
		e, ok := s.rooms[roomID]
		if !ok {
			return domain.User{}, domain.ErrRoomNotFound
		}
		if !e.room.HasMember(id) {
			return domain.User{}, domain.Errorf(domain.ErrNotMember, "user %q is not in room %q", id, roomID)
		}
		e.room.Touch(now)
	}
	u.IsOnline = true
	u.Touch(now)
	return u.Snapshot(), nil
}

// Touch refreshes activity for a known user and reports whether it exists.
func (s *State) Touch(id domain.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if ok {
		u.Touch(s.now())
	}
	return ok
}

// SetOffline marks a user offline without touching its membership.
func (s *State) SetOffline(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsOnline = false
	}
}
