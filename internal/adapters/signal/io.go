package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sess *app.Session, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
		c.Close()
		ctl.Orch.Disconnect(sess)
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(sess, c, data)
		}
	}
}

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (ctl *SignalWSController) handleSignal(sess *app.Session, c *WsSignalConn, data []byte) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("module", "signal").Str("sid", string(sess.ID)).Interface("panic", p).Msg("handler panic")
			ctl.reply(c, "error", orch.Result{Code: http.StatusInternalServerError, Message: "internal server error"})
		}
	}()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.reply(c, "error", orch.Result{Code: http.StatusBadRequest, Message: "bad_payload"})
		return
	}

	switch env.Event {
	case "createRoom":
		ctl.handleCreateRoom(sess, c, env.Data)
	case "joinRoom":
		ctl.handleJoin(sess, c, env.Data)
	case "leaveRoom":
		ctl.handleLeave(sess, c, env.Data)
	case "disbandRoom":
		ctl.handleDisband(sess, c, env.Data)
	case "getRooms":
		ctl.reply(c, "getRoomsResult", ctl.Orch.Rooms())
	case "getRoomUsers":
		ctl.handleRoomUsers(c, env.Data)
	case "heartbeat":
		ctl.handleHeartbeat(sess, c, env.Data)
	case "message":
		ctl.handleMessage(sess, c, env.Data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("event", env.Event).Msg("unknown signal")
		ctl.reply(c, "error", orch.Result{Code: http.StatusNotFound, Message: "unknown event " + env.Event})
	}
}

func (ctl *SignalWSController) reply(c *WsSignalConn, event string, res orch.Result) {
	ctl.sendJSON(c, event, res)
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, event string, v any) {
	b, err := encode(event, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("event", event).Msg("reply dropped")
	}
}
