package orch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Result is the uniform reply of every coordination call, shared by both entry points.
type Result struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Err     error  `json:"-"`
}

func ok(code int, msg string, data any) Result {
	return Result{Success: true, Code: code, Message: msg, Data: data}
}

// Fail maps err to its status code. Internal failures never expose their detail.
func Fail(err error) Result {
	code := domain.StatusCode(err)
	res := Result{Code: code, Message: err.Error(), Err: err}
	if code == http.StatusInternalServerError {
		res.Message = "internal server error"
	}
	var conflict *core.ConflictError
	if errors.As(err, &conflict) {
		res.Data = ConflictData{
			RoomID:     conflict.Room.ID,
			RoomInfo:   conflict.Room,
			Suggestion: "use another room id or join the existing room",
		}
	}
	return res
}

type ConflictData struct {
	RoomID     domain.RoomID   `json:"roomId"`
	RoomInfo   domain.RoomInfo `json:"roomInfo"`
	Suggestion string          `json:"suggestion"`
}

// Orchestrator is the single operation surface used by the REST and channel entry points.
type Orchestrator struct {
	State    *core.State
	Sessions *app.Registry
	NewID    func() string
}

func New(state *core.State, sessions *app.Registry) *Orchestrator {
	return &Orchestrator{State: state, Sessions: sessions, NewID: uuid.NewString}
}

// guard turns a panic inside an operation into an Internal result.
func guard(op string, fn func() Result) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%s: panic: %v", op, p)
			log.Error().Err(err).Str("module", "orch").Str("op", op).Msg("recovered")
			res = Fail(fmt.Errorf("%w: %v", domain.ErrInternal, err))
		}
	}()
	res = fn()
	if res.Err != nil && res.Code == http.StatusInternalServerError {
		log.Error().Err(res.Err).Str("module", "orch").Str("op", op).Msg("operation failed")
	}
	return res
}

// Through runs a coordination call on behalf of a channel session. On success the
// session is bound to uid inside the same critical section, so a concurrent
// disconnect either sees the binding or prevents the call altogether.
func (o *Orchestrator) Through(s *app.Session, uid domain.UserID, fn func() Result) Result {
	var res Result
	err := o.Sessions.Do(s, func() error {
		res = fn()
		if res.Success && uid != "" {
			o.Sessions.Bind(s, uid)
		}
		return nil
	})
	if err != nil {
		return Fail(fmt.Errorf("%w: %v", domain.ErrInternal, err))
	}
	return res
}

// leaveAttempts bounds how often Disconnect chases a user who keeps moving.
const leaveAttempts = 3

// Disconnect releases the session once and leaves the user's current room exactly like
// an explicit leave. Another live session of the same user keeps the membership.
func (o *Orchestrator) Disconnect(s *app.Session) {
	uid, _, shared, ok := o.Sessions.Release(s)
	if !ok || uid == "" {
		return
	}
	if shared {
		log.Info().Str("module", "orch").Str("sid", string(s.ID)).Str("user", string(uid)).Msg("membership kept by another session")
		return
	}
	for range leaveAttempts {
		room, in := o.State.RoomOf(uid)
		if !in {
			return
		}
		res := o.LeaveRoom(LeaveRequest{RoomID: room, UserID: uid, Reason: domain.LeaveDisconnect, Origin: string(s.ID)})
		if res.Success {
			return
		}
		if !errors.Is(res.Err, domain.ErrNotMember) && !errors.Is(res.Err, domain.ErrNotFound) {
			log.Warn().Err(res.Err).Str("module", "orch").Str("sid", string(s.ID)).Str("room", string(room)).Msg("disconnect leave failed")
			return
		}
	}
	log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Str("user", string(uid)).Msg("disconnect leave gave up")
}
