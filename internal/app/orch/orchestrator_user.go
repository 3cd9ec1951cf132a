package orch

import (
	"net/http"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
)

type CreateUserRequest struct {
	UserID   domain.UserID
	Nickname string
	Type     string
	Avatar   *string
}

type UpdateUserRequest struct {
	Nickname *string
	Avatar   *string
	Status   *string
}

type HeartbeatData struct {
	UserID     domain.UserID `json:"userId"`
	LastActive time.Time     `json:"lastActive"`
}

func (o *Orchestrator) CreateUser(req CreateUserRequest) Result {
	return guard("createUser", func() Result {
		typ, err := domain.ParseUserType(req.Type)
		if err != nil {
			return Fail(err)
		}
		u, err := o.State.CreateUser(core.CreateUserParams{
			UserID:   req.UserID,
			Nickname: req.Nickname,
			Type:     typ,
			Avatar:   req.Avatar,
		})
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusCreated, "user created", u)
	})
}

func (o *Orchestrator) User(id domain.UserID) Result {
	return guard("getUser", func() Result {
		u, err := o.State.User(id)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "ok", u)
	})
}

func (o *Orchestrator) UpdateUser(id domain.UserID, req UpdateUserRequest) Result {
	return guard("updateUser", func() Result {
		patch := domain.UserPatch{Nickname: req.Nickname, Avatar: req.Avatar}
		if req.Status != nil {
			st, err := domain.ParseUserStatus(*req.Status)
			if err != nil {
				return Fail(err)
			}
			patch.Status = &st
		}
		u, err := o.State.UpdateUser(id, patch)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "user updated", u)
	})
}

// DeleteUser removes the user for good; a current membership ends with a userLeft broadcast.
func (o *Orchestrator) DeleteUser(id domain.UserID, origin string) Result {
	return guard("deleteUser", func() Result {
		u, err := o.State.DeleteUser(id, origin)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "user deleted", u)
	})
}

func (o *Orchestrator) Heartbeat(id domain.UserID, roomID domain.RoomID) Result {
	return guard("heartbeat", func() Result {
		if id == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "userId is required"))
		}
		u, err := o.State.Heartbeat(id, roomID)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "activity updated", HeartbeatData{UserID: u.ID, LastActive: u.LastActiveAt})
	})
}
