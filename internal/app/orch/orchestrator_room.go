package orch

import (
	"net/http"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
)

type CreateRoomRequest struct {
	RoomID   domain.RoomID
	UserID   domain.UserID
	Nickname string
	RoomName domain.RoomName
	Media    *domain.MediaConfigInput
	Origin   string
}

type JoinRequest struct {
	RoomID   domain.RoomID
	UserID   domain.UserID
	Nickname string
	Origin   string
}

type LeaveRequest struct {
	RoomID domain.RoomID
	UserID domain.UserID
	Reason domain.LeaveReason
	Origin string
}

type MembershipData struct {
	UserID   domain.UserID   `json:"userId"`
	UserInfo domain.User     `json:"userInfo"`
	RoomInfo domain.RoomInfo `json:"roomInfo"`
}

type RoomData struct {
	RoomInfo domain.RoomInfo `json:"roomInfo"`
}

type RoomUsersData struct {
	RoomInfo  domain.RoomInfo `json:"roomInfo"`
	UserCount int             `json:"userCount"`
	Users     []domain.User   `json:"users"`
}

type RoomsData struct {
	Count int               `json:"count"`
	Rooms []domain.RoomInfo `json:"rooms"`
}

type DisbandData struct {
	RoomID      domain.RoomID `json:"roomId"`
	DisbandedAt time.Time     `json:"disbandedAt"`
}

func membership(m core.Membership) MembershipData {
	return MembershipData{UserID: m.User.ID, UserInfo: m.User, RoomInfo: m.Room}
}

func (o *Orchestrator) CreateRoom(req CreateRoomRequest) Result {
	return guard("createRoom", func() Result {
		if req.UserID == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "userId is required"))
		}
		if req.RoomID == "" {
			req.RoomID = domain.RoomID(o.NewID())
		}
		m, err := o.State.CreateRoom(core.CreateRoomParams{
			RoomID:    req.RoomID,
			CreatorID: req.UserID,
			Nickname:  req.Nickname,
			Name:      req.RoomName,
			Media:     req.Media,
			Origin:    req.Origin,
		})
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusCreated, "room created", membership(m))
	})
}

func (o *Orchestrator) JoinRoom(req JoinRequest) Result {
	return guard("joinRoom", func() Result {
		if req.RoomID == "" || req.UserID == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "roomId and userId are required"))
		}
		m, err := o.State.JoinRoom(req.RoomID, req.UserID, req.Nickname, req.Origin)
		if err != nil {
			return Fail(err)
		}
		msg := "joined room"
		if m.Reconnected {
			msg = "reconnected to room"
		}
		return ok(http.StatusOK, msg, membership(m))
	})
}

func (o *Orchestrator) LeaveRoom(req LeaveRequest) Result {
	return guard("leaveRoom", func() Result {
		if req.RoomID == "" || req.UserID == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "roomId and userId are required"))
		}
		if req.Reason == "" {
			req.Reason = domain.LeaveExplicit
		}
		info, err := o.State.LeaveRoom(req.RoomID, req.UserID, req.Reason, req.Origin)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "left room", RoomData{RoomInfo: info})
	})
}

func (o *Orchestrator) DisbandRoom(roomID domain.RoomID, requester domain.UserID, origin string) Result {
	return guard("disbandRoom", func() Result {
		if roomID == "" || requester == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "roomId and userId are required"))
		}
		_, at, err := o.State.DisbandRoom(roomID, requester, origin)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "room disbanded", DisbandData{RoomID: roomID, DisbandedAt: at})
	})
}

func (o *Orchestrator) Rooms() Result {
	return guard("getRooms", func() Result {
		rooms := o.State.Rooms()
		return ok(http.StatusOK, "ok", RoomsData{Count: len(rooms), Rooms: rooms})
	})
}

func (o *Orchestrator) Room(roomID domain.RoomID) Result {
	return guard("getRoom", func() Result {
		info, err := o.State.Room(roomID)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "ok", info)
	})
}

// RoomUsers lists the members of roomID, or only userID when it is given.
func (o *Orchestrator) RoomUsers(roomID domain.RoomID, userID domain.UserID) Result {
	return guard("getRoomUsers", func() Result {
		snap, err := o.State.RoomMembers(roomID)
		if err != nil {
			return Fail(err)
		}
		users := snap.Members
		if userID != "" {
			users = nil
			for _, u := range snap.Members {
				if u.ID == userID {
					users = []domain.User{u}
					break
				}
			}
			if users == nil {
				return Fail(domain.Errorf(domain.ErrNotMember, "user %q is not in room %q", userID, roomID))
			}
		}
		return ok(http.StatusOK, "ok", RoomUsersData{RoomInfo: snap.RoomInfo, UserCount: len(users), Users: users})
	})
}

func (o *Orchestrator) Stats() core.Stats {
	return o.State.Stats()
}
