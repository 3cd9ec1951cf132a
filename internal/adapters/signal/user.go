package signal

import (
	"net/http"
	"strings"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

type heartbeatPayload struct {
	UserID string `json:"userId" binding:"max=64"`
	RoomID string `json:"roomId" binding:"max=64"`
}

type messageIn struct {
	RoomID  string `json:"roomId" binding:"max=64"`
	Message string `json:"message" binding:"required,max=4096"`
}

type relayData struct {
	Delivered int `json:"delivered"`
}

func (ctl *SignalWSController) handleHeartbeat(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p heartbeatPayload
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "heartbeatResult", orch.Fail(err))
		return
	}
	uid, err := ctl.identity(sess, p.UserID)
	if err != nil {
		ctl.reply(conn, "heartbeatResult", orch.Fail(err))
		return
	}
	res := ctl.Orch.Through(sess, "", func() orch.Result {
		return ctl.Orch.Heartbeat(uid, domain.RoomID(strings.TrimSpace(p.RoomID)))
	})
	ctl.reply(conn, "heartbeatResult", res)
}

// handleMessage relays a chat message to the room the session is subscribed to.
func (ctl *SignalWSController) handleMessage(sess *app.Session, conn *WsSignalConn, data []byte) {
	var p messageIn
	if err := decode(data, &p); err != nil {
		ctl.reply(conn, "messageResult", orch.Fail(err))
		return
	}
	uid, room := ctl.Orch.Sessions.Identity(sess)
	if want := domain.RoomID(strings.TrimSpace(p.RoomID)); room == "" || (want != "" && want != room) {
		ctl.reply(conn, "messageResult", orch.Fail(domain.Errorf(domain.ErrNotMember, "session is not in room %q", want)))
		return
	}

	nickname := string(uid)
	if u, err := ctl.Orch.State.User(uid); err == nil {
		nickname = u.Nickname
	}
	ctl.Orch.State.Touch(uid)
	frame, err := encode("message", messagePayload{
		UserID:    uid,
		Nickname:  nickname,
		Message:   p.Message,
		Timestamp: ctl.Orch.State.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode message")
		ctl.reply(conn, "messageResult", orch.Result{Code: http.StatusInternalServerError, Message: "internal server error"})
		return
	}
	n := ctl.Router.BroadcastRoom(room, frame, nil)
	ctl.reply(conn, "messageResult", orch.Result{Success: true, Code: http.StatusOK, Message: "message sent", Data: relayData{Delivered: n}})
}
