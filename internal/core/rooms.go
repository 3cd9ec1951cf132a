package core

import (
	"fmt"
	"time"

	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// ConflictError reports an existing room; the room is never overwritten.
type ConflictError struct {
	Room domain.RoomInfo
}

func (e *ConflictError) Error() string { return fmt.Sprintf("room %q already exists", e.Room.ID) }
func (e *ConflictError) Unwrap() error { return domain.ErrConflict }

type CreateRoomParams struct {
	RoomID    domain.RoomID
	CreatorID domain.UserID
	Nickname  string
	Name      domain.RoomName
	Media     *domain.MediaConfigInput
	Origin    string
}

// Membership describes a user's standing in a room after a create or join.
type Membership struct {
	Room         domain.RoomInfo
	User         domain.User
	Reconnected  bool
	PreviousRoom domain.RoomID
}

// addMemberLocked admits u into r. An existing member is a no-op, not an error.
func addMemberLocked(r *domain.Room, u *domain.User, now time.Time) (bool, error) {
	if r.HasMember(u.ID) {
		return false, nil
	}
	if r.IsFull() {
		return false, domain.Errorf(domain.ErrCapacity, "room %q is full (%d/%d)", r.ID, r.MemberCount(), r.MaxUsers)
	}
	r.Members[u.ID] = u
	r.Touch(now)
	u.RoomID = r.ID
	u.IsOnline = true
	u.JoinedAt = now
	u.Touch(now)
	return true, nil
}

// removeMemberLocked detaches uid from r; the user record itself stays.
func removeMemberLocked(r *domain.Room, uid domain.UserID, now time.Time) (*domain.User, error) {
	u, ok := r.Members[uid]
	if !ok {
		return nil, domain.Errorf(domain.ErrNotMember, "user %q is not in room %q", uid, r.ID)
	}
	delete(r.Members, uid)
	r.Touch(now)
	if u.RoomID == r.ID {
		u.RoomID = ""
	}
	u.IsOnline = false
	u.Touch(now)
	return u, nil
}

// transferLocked admits u to `to` and drops it from `from` in one step.
// On failure neither room nor the user record is changed.
func transferLocked(from, to *domain.Room, u *domain.User, now time.Time) error {
	if to.IsFull() {
		return domain.Errorf(domain.ErrCapacity, "room %q is full (%d/%d)", to.ID, to.MemberCount(), to.MaxUsers)
	}
	if from != nil && from.HasMember(u.ID) {
		delete(from.Members, u.ID)
		from.Touch(now)
	}
	_, err := addMemberLocked(to, u, now)
	return err
}

// CreateRoom registers a new room and admits its creator in one step. A creator
// that already sits in another room is moved out of it atomically.
func (s *State) CreateRoom(p CreateRoomParams) (Membership, error) {
	if p.RoomID == "" || p.CreatorID == "" {
		return Membership{}, domain.Errorf(domain.ErrBadInput, "room id and user id are required")
	}
	if info, err := s.Room(p.RoomID); err == nil {
		return Membership{}, &ConflictError{Room: info}
	}
	media, err := domain.ValidateMediaConfig(p.Media, s.now())
	if err != nil {
		return Membership{}, err
	}

	for range maxRetries {
		cur := s.currentRoom(p.CreatorID)
		var prev *roomEntry
		if cur != "" {
			e, ok := s.entry(cur)
			if !ok {
				continue
			}
			prev = e
		}
		unlockPrev := lockRooms(prev)

		s.mu.Lock()
		if existing, ok := s.rooms[p.RoomID]; ok {
			info := existing.room.Info()
			s.mu.Unlock()
			unlockPrev()
			return Membership{}, &ConflictError{Room: info}
		}
		u, known := s.users[p.CreatorID]
		if actual := roomOfRecord(u); actual != cur || (prev != nil && prev.gone) {
			s.mu.Unlock()
			unlockPrev()
			continue
		}

		now := s.now()
		room := domain.NewRoom(p.RoomID, p.Name, p.CreatorID, media, s.maxUsers, now)
		e := &roomEntry{room: room}
		e.mu.Lock()
		s.rooms[p.RoomID] = e

		if !known {
			u = domain.NewUser(p.CreatorID, p.Nickname, now)
		}
		var from *domain.Room
		if prev != nil {
			from = prev.room
		}
		if err := transferLocked(from, room, u, now); err != nil {
			delete(s.rooms, p.RoomID)
			e.gone = true
			s.mu.Unlock()
			e.mu.Unlock()
			unlockPrev()
			log.Error().Err(err).Str("module", "core.state").Str("room", string(p.RoomID)).Msg("creator admission failed, room rolled back")
			return Membership{}, domain.Errorf(domain.ErrInternal, "room %q could not admit its creator", p.RoomID)
		}
		if !known {
			s.users[u.ID] = u
		} else if p.Nickname != "" {
			u.Nickname = p.Nickname
		}
		var left domain.Event
		if prev != nil {
			left = domain.UserLeft{RoomID: cur, UserID: u.ID, Reason: domain.LeaveMoved, At: now, Origin: p.Origin}
		}
		m := Membership{Room: room.Info(), User: u.Snapshot(), PreviousRoom: cur}
		s.mu.Unlock()

		s.publish(left, domain.RoomCreated{Info: m.Room, CreatorID: u.ID, At: now, Origin: p.Origin})
		e.mu.Unlock()
		unlockPrev()

		log.Info().Str("module", "core.state").Str("room", string(p.RoomID)).Str("user", string(u.ID)).Msg("room created")
		return m, nil
	}
	return Membership{}, domain.Errorf(domain.ErrInternal, "create room %q: membership kept changing", p.RoomID)
}

func roomOfRecord(u *domain.User) domain.RoomID {
	if u == nil {
		return ""
	}
	return u.RoomID
}

// JoinRoom admits uid to roomID. Joining the current room again is a reconnect;
// joining a different room leaves the previous one in the same transition.
func (s *State) JoinRoom(roomID domain.RoomID, uid domain.UserID, nickname, origin string) (Membership, error) {
	if roomID == "" || uid == "" {
		return Membership{}, domain.Errorf(domain.ErrBadInput, "room id and user id are required")
	}
	for range maxRetries {
		target, ok := s.entry(roomID)
		if !ok {
			return Membership{}, domain.ErrRoomNotFound
		}
		cur := s.currentRoom(uid)
		var prev *roomEntry
		if cur != "" && cur != roomID {
			e, ok := s.entry(cur)
			if !ok {
				continue
			}
			prev = e
		}
		unlock := lockRooms(target, prev)
		if target.gone {
			unlock()
			return Membership{}, domain.ErrRoomNotFound
		}

		s.mu.Lock()
		u, known := s.users[uid]
		if actual := roomOfRecord(u); actual != cur || (prev != nil && prev.gone) {
			s.mu.Unlock()
			unlock()
			continue
		}

		now := s.now()
		room := target.room
		if known && room.HasMember(uid) {
			u.IsOnline = true
			u.Touch(now)
			room.Touch(now)
			m := Membership{Room: room.Info(), User: u.Snapshot(), Reconnected: true}
			s.mu.Unlock()
			unlock()
			log.Info().Str("module", "core.state").Str("room", string(roomID)).Str("user", string(uid)).Msg("member reconnected")
			return m, nil
		}
		var from *domain.Room
		if prev != nil {
			from = prev.room
		}
		if !known {
			u = domain.NewUser(uid, nickname, now)
		}
		if err := transferLocked(from, room, u, now); err != nil {
			s.mu.Unlock()
			unlock()
			return Membership{}, err
		}
		if !known {
			s.users[uid] = u
		} else if nickname != "" {
			u.Nickname = nickname
		}
		var left domain.Event
		if prev != nil {
			left = domain.UserLeft{RoomID: cur, UserID: uid, Reason: domain.LeaveMoved, At: now, Origin: origin}
		}
		m := Membership{Room: room.Info(), User: u.Snapshot(), PreviousRoom: cur}
		s.mu.Unlock()

		s.publish(left, domain.UserJoined{RoomID: roomID, UserID: uid, Nickname: m.User.Nickname, At: now, Origin: origin})
		unlock()

		log.Info().Str("module", "core.state").Str("room", string(roomID)).Str("user", string(uid)).Str("from", string(cur)).Msg("member joined")
		return m, nil
	}
	return Membership{}, domain.Errorf(domain.ErrInternal, "join room %q: membership kept changing", roomID)
}

// LeaveRoom is a soft leave: membership is removed, the user record stays.
func (s *State) LeaveRoom(roomID domain.RoomID, uid domain.UserID, reason domain.LeaveReason, origin string) (domain.RoomInfo, error) {
	info, _, err := s.removeMember(roomID, uid, reason, origin, nil)
	return info, err
}

// EvictStaleMember removes uid from roomID only if it is still inactive since before cutoff.
func (s *State) EvictStaleMember(roomID domain.RoomID, uid domain.UserID, cutoff time.Time) (bool, error) {
	_, removed, err := s.removeMember(roomID, uid, domain.LeaveExpired, "", func(u *domain.User) bool {
		return u.LastActiveAt.Before(cutoff)
	})
	return removed, err
}

func (s *State) removeMember(roomID domain.RoomID, uid domain.UserID, reason domain.LeaveReason, origin string, eligible func(*domain.User) bool) (domain.RoomInfo, bool, error) {
	e, ok := s.entry(roomID)
	if !ok {
		return domain.RoomInfo{}, false, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.RoomInfo{}, false, domain.ErrRoomNotFound
	}

	s.mu.Lock()
	if u, ok := e.room.Members[uid]; ok && eligible != nil && !eligible(u) {
		info := e.room.Info()
		s.mu.Unlock()
		return info, false, nil
	}
	now := s.now()
	if _, err := removeMemberLocked(e.room, uid, now); err != nil {
		s.mu.Unlock()
		return domain.RoomInfo{}, false, err
	}
	info := e.room.Info()
	s.mu.Unlock()

	s.publish(domain.UserLeft{RoomID: roomID, UserID: uid, Reason: reason, At: now, Origin: origin})
	log.Info().Str("module", "core.state").Str("room", string(roomID)).Str("user", string(uid)).Str("reason", string(reason)).Msg("member left")
	return info, true, nil
}

// dropRoomLocked removes the room and hard-deletes every member record.
// Caller holds e.mu and s.mu for writing.
func (s *State) dropRoomLocked(e *roomEntry) []domain.UserID {
	members := make([]domain.UserID, 0, len(e.room.Members))
	for uid := range e.room.Members {
		members = append(members, uid)
		delete(s.users, uid)
	}
	clear(e.room.Members)
	delete(s.rooms, e.room.ID)
	e.gone = true
	return members
}

// DisbandRoom deletes the room and its members. Allowed for the creator or an admin.
func (s *State) DisbandRoom(roomID domain.RoomID, requester domain.UserID, origin string) (domain.RoomSnapshot, time.Time, error) {
	e, ok := s.entry(roomID)
	if !ok {
		return domain.RoomSnapshot{}, time.Time{}, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.RoomSnapshot{}, time.Time{}, domain.ErrRoomNotFound
	}

	s.mu.Lock()
	if !e.room.IsCreator(requester) && !s.isAdminLocked(requester) {
		s.mu.Unlock()
		return domain.RoomSnapshot{}, time.Time{}, domain.Errorf(domain.ErrForbidden, "only the creator or an admin can disband room %q", roomID)
	}
	snap := snapshotLocked(e.room)
	now := s.now()
	members := s.dropRoomLocked(e)
	s.mu.Unlock()

	s.publish(domain.RoomDisbanded{RoomID: roomID, By: requester, Reason: domain.DisbandRequested, Members: members, At: now, Origin: origin})
	log.Info().Str("module", "core.state").Str("room", string(roomID)).Str("by", string(requester)).Int("members", len(members)).Msg("room disbanded")
	return snap, now, nil
}

// RemoveIdleRoom hard-deletes roomID if it is empty and untouched since before cutoff.
func (s *State) RemoveIdleRoom(roomID domain.RoomID, cutoff time.Time) (bool, error) {
	e, ok := s.entry(roomID)
	if !ok {
		return false, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return false, nil
	}

	s.mu.Lock()
	if e.room.MemberCount() > 0 || !e.room.LastActiveAt.Before(cutoff) {
		s.mu.Unlock()
		return false, nil
	}
	now := s.now()
	s.dropRoomLocked(e)
	s.mu.Unlock()

	s.publish(domain.RoomDisbanded{RoomID: roomID, Reason: domain.DisbandIdle, At: now})
	log.Info().Str("module", "core.state").Str("room", string(roomID)).Msg("idle room removed")
	return true, nil
}

// UpdateMediaConfig replaces the room's media endpoint. Creator only; admins get no override here.
func (s *State) UpdateMediaConfig(roomID domain.RoomID, requester domain.UserID, in *domain.MediaConfigInput, origin string) (domain.RoomInfo, error) {
	e, ok := s.entry(roomID)
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	if !e.room.IsCreator(requester) {
		return domain.RoomInfo{}, domain.Errorf(domain.ErrForbidden, "only the creator can update the media config of room %q", roomID)
	}
	now := s.now()
	media, err := domain.ValidateMediaConfig(in, now)
	if err != nil {
		return domain.RoomInfo{}, err
	}

	s.mu.Lock()
	e.room.Media = media
	e.room.Touch(now)
	info := e.room.Info()
	s.mu.Unlock()

	s.publish(domain.MediaConfigUpdated{Info: info, By: requester, At: now, Origin: origin})
	return info, nil
}

type StaleMember struct {
	RoomID domain.RoomID
	UserID domain.UserID
}

// StaleMembers lists room members inactive since before cutoff.
func (s *State) StaleMembers(cutoff time.Time) []StaleMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StaleMember
	for id, e := range s.rooms {
		for uid, u := range e.room.Members {
			if u.LastActiveAt.Before(cutoff) {
				out = append(out, StaleMember{RoomID: id, UserID: uid})
			}
		}
	}
	return out
}

// IdleRooms lists empty rooms untouched since before cutoff.
func (s *State) IdleRooms(cutoff time.Time) []domain.RoomID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RoomID
	for id, e := range s.rooms {
		if e.room.MemberCount() == 0 && e.room.LastActiveAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out
}
