package signal

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"
)

// decode unmarshals a payload and runs the binding validator on it.
func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.Errorf(domain.ErrBadInput, "bad payload: %v", err)
	}
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return domain.Errorf(domain.ErrBadInput, "invalid payload: %v", err)
	}
	return nil
}

type createRoomPayload struct {
	RoomID   string                   `json:"roomId" binding:"omitempty,max=64"`
	UserID   string                   `json:"userId" binding:"required,max=64"`
	Nickname string                   `json:"nickname" binding:"max=64"`
	RoomName string                   `json:"roomName" binding:"max=128"`
	Media    *domain.MediaConfigInput `json:"mediaConfig"`
}

type joinPayload struct {
	RoomID   string `json:"roomId" binding:"required,max=64"`
	UserID   string `json:"userId" binding:"required,max=64"`
	Nickname string `json:"nickname" binding:"max=64"`
}

type roomUserPayload struct {
	RoomID string `json:"roomId" binding:"required,max=64"`
	UserID string `json:"userId" binding:"max=64"`
}

func (ctl *SignalWSController) handleCreateRoom(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p createRoomPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "createRoomResult", orch.Fail(err))
		return
	}
	uid, err := ctl.identity(sess, p.UserID)
	if err != nil {
		ctl.reply(conn, "createRoomResult", orch.Fail(err))
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(uid) {
		log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", string(uid)).Msg("createRoom rate limited")
		ctl.reply(conn, "createRoomResult", orch.Result{Code: http.StatusTooManyRequests, Message: "too many rooms created, try again later"})
		return
	}
	res := ctl.Orch.Through(sess, uid, func() orch.Result {
		return ctl.Orch.CreateRoom(orch.CreateRoomRequest{
			RoomID:   domain.RoomID(strings.TrimSpace(p.RoomID)),
			UserID:   uid,
			Nickname: p.Nickname,
			RoomName: domain.RoomName(p.RoomName),
			Media:    p.Media,
			Origin:   string(sess.ID),
		})
	})
	ctl.reply(conn, "createRoomResult", res)
}

func (ctl *SignalWSController) handleJoin(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p joinPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "joinRoomResult", orch.Fail(err))
		return
	}
	uid, err := ctl.identity(sess, p.UserID)
	if err != nil {
		ctl.reply(conn, "joinRoomResult", orch.Fail(err))
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Str("room", p.RoomID).Msg("join")
	res := ctl.Orch.Through(sess, uid, func() orch.Result {
		return ctl.Orch.JoinRoom(orch.JoinRequest{
			RoomID:   domain.RoomID(strings.TrimSpace(p.RoomID)),
			UserID:   uid,
			Nickname: p.Nickname,
			Origin:   string(sess.ID),
		})
	})
	ctl.reply(conn, "joinRoomResult", res)
}

// handleLeave leaves the room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p roomUserPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "leaveRoomResult", orch.Fail(err))
		return
	}
	uid, err := ctl.identity(sess, p.UserID)
	if err != nil {
		ctl.reply(conn, "leaveRoomResult", orch.Fail(err))
		return
	}
	res := ctl.Orch.Through(sess, "", func() orch.Result {
		return ctl.Orch.LeaveRoom(orch.LeaveRequest{
			RoomID: domain.RoomID(strings.TrimSpace(p.RoomID)),
			UserID: uid,
			Origin: string(sess.ID),
		})
	})
	ctl.reply(conn, "leaveRoomResult", res)
}

func (ctl *SignalWSController) handleDisband(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p roomUserPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "disbandRoomResult", orch.Fail(err))
		return
	}
	uid, err := ctl.identity(sess, p.UserID)
	if err != nil {
		ctl.reply(conn, "disbandRoomResult", orch.Fail(err))
		return
	}
	res := ctl.Orch.Through(sess, "", func() orch.Result {
		return ctl.Orch.DisbandRoom(domain.RoomID(strings.TrimSpace(p.RoomID)), uid, string(sess.ID))
	})
	ctl.reply(conn, "disbandRoomResult", res)
}

func (ctl *SignalWSController) handleRoomUsers(conn *WsSignalConn, data []byte) {
	var p roomUserPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "getRoomUsersResult", orch.Fail(err))
		return
	}
	res := ctl.Orch.RoomUsers(domain.RoomID(strings.TrimSpace(p.RoomID)), domain.UserID(strings.TrimSpace(p.UserID)))
	ctl.reply(conn, "getRoomUsersResult", res)
}

// identity resolves the acting user. An unbound session acts for the user named in the
// payload; a bound one only ever acts for its own user.
func (ctl *SignalWSController) identity(sess *app.Session, named string) (domain.UserID, error) {
	uid := domain.UserID(strings.TrimSpace(named))
	bound, _ := ctl.Orch.Sessions.Identity(sess)
	switch {
	case bound == "":
		return uid, nil
	case uid == "" || uid == bound:
		return bound, nil
	}
	log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Str("user", string(bound)).Str("named", string(uid)).Msg("foreign user id rejected")
	return "", domain.Errorf(domain.ErrForbidden, "session belongs to another user")
}
