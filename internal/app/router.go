package app

import (
	"errors"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// Encoder turns a domain event into the channel's wire frame.
type Encoder interface {
	Encode(ev domain.Event) (core.Frame, error)
}

// Router fans committed domain events out to subscribed sessions.
// Events are handled one at a time, so every session sees them in publish order.
type Router struct {
	Sessions *Registry
	Policy   Policy
	Codec    Encoder
}

func NewRouter(sessions *Registry, policy Policy, codec Encoder) *Router {
	return &Router{Sessions: sessions, Policy: policy, Codec: codec}
}

// Run consumes events until the channel is closed.
func (r *Router) Run(events <-chan domain.Event) {
	for ev := range events {
		r.Handle(ev)
	}
	log.Info().Str("module", "app.router").Msg("event stream closed")
}

func (r *Router) Handle(ev domain.Event) {
	frame, err := r.Codec.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("event", ev.Name()).Msg("encode event")
		return
	}
	origin := core.SessionID(ev.Source())

	switch e := ev.(type) {
	case domain.UserJoined:
		// subscribe first so the joiner's sessions can be excluded below
		r.Sessions.Reconcile(e.UserID)
		skip := map[core.SessionID]bool{origin: true}
		for _, s := range r.Sessions.SessionsOf(e.UserID) {
			skip[s.ID] = true
		}
		r.BroadcastRoom(e.RoomID, frame, skip)
	case domain.UserLeft:
		r.Sessions.Reconcile(e.UserID)
		r.BroadcastRoom(e.RoomID, frame, nil)
	case domain.RoomDisbanded:
		r.BroadcastRoom(e.RoomID, frame, nil)
		r.Sessions.UnsubscribeRoom(e.RoomID)
		for _, uid := range e.Members {
			r.Sessions.Reconcile(uid)
		}
	case domain.RoomCreated:
		r.Sessions.Reconcile(e.CreatorID)
		r.BroadcastAll(frame)
	case domain.MediaConfigUpdated:
		r.BroadcastRoom(e.Info.ID, frame, nil)
	default:
		log.Warn().Str("module", "app.router").Str("event", ev.Name()).Msg("unrouted event")
	}
}

// BroadcastRoom delivers f to every subscriber of room not listed in skip.
func (r *Router) BroadcastRoom(room domain.RoomID, f core.Frame, skip map[core.SessionID]bool) int {
	sent := 0
	for _, s := range r.Sessions.Subscribers(room) {
		if skip[s.ID] {
			continue
		}
		if r.deliver(room, s, f) {
			sent++
		}
	}
	return sent
}

func (r *Router) BroadcastAll(f core.Frame) int {
	sent := 0
	for _, s := range r.Sessions.All() {
		if r.deliver("", s, f) {
			sent++
		}
	}
	return sent
}

// deliver is best effort; one failing session never stops the fan-out.
func (r *Router) deliver(room domain.RoomID, s *Session, f core.Frame) bool {
	err := s.Conn.TrySend(f)
	if err == nil {
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) || r.Policy == nil {
		return false
	}
	switch r.Policy.OnBackPressure(room, s) {
	case KickMember:
		log.Warn().Str("module", "app.router").Str("sid", string(s.ID)).Str("room", string(room)).Msg("slow session kicked")
		s.Conn.Close()
	case MarkSlow:
		log.Warn().Str("module", "app.router").Str("sid", string(s.ID)).Msg("slow session")
	case DropFrame, NoAction:
	}
	return false
}
