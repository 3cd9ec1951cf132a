package app

import (
	"context"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

// SweepTarget is the part of the registry state the reaper mutates. Every
// method goes through the same locked paths as interactive calls.
type SweepTarget interface {
	StaleMembers(cutoff time.Time) []core.StaleMember
	EvictStaleMember(room domain.RoomID, uid domain.UserID, cutoff time.Time) (bool, error)
	IdleRooms(cutoff time.Time) []domain.RoomID
	RemoveIdleRoom(room domain.RoomID, cutoff time.Time) (bool, error)
}

type ReaperConfig struct {
	Enabled        bool
	Interval       time.Duration
	OfflineTimeout time.Duration
	IdleTimeout    time.Duration
}

type Reaper struct {
	target SweepTarget
	cfg    ReaperConfig
	now    func() time.Time
}

func NewReaper(target SweepTarget, cfg ReaperConfig, now func() time.Time) *Reaper {
	if now == nil {
		now = time.Now
	}
	return &Reaper{target: target, cfg: cfg, now: now}
}

// Sweep evicts members inactive for longer than the offline timeout, then removes
// empty rooms idle for longer than the idle timeout.
func (r *Reaper) Sweep(now time.Time) (users, rooms int) {
	userCutoff := now.Add(-r.cfg.OfflineTimeout)
	for _, m := range r.target.StaleMembers(userCutoff) {
		ok, err := r.target.EvictStaleMember(m.RoomID, m.UserID, userCutoff)
		if err != nil {
			// left or moved since the listing
			log.Debug().Err(err).Str("module", "app.reaper").Str("user", string(m.UserID)).Msg("skip eviction")
			continue
		}
		if ok {
			users++
		}
	}

	roomCutoff := now.Add(-r.cfg.IdleTimeout)
	for _, id := range r.target.IdleRooms(roomCutoff) {
		ok, err := r.target.RemoveIdleRoom(id, roomCutoff)
		if err != nil {
			log.Error().Err(err).Str("module", "app.reaper").Str("room", string(id)).Msg("remove idle room")
			continue
		}
		if ok {
			rooms++
		}
	}

	if users > 0 || rooms > 0 {
		log.Info().Str("module", "app.reaper").Int("users", users).Int("rooms", rooms).Msg("sweep done")
	}
	return users, rooms
}

// Run sweeps on every interval tick until ctx is done. A disabled reaper just waits.
func (r *Reaper) Run(ctx context.Context) error {
	if !r.cfg.Enabled || r.cfg.Interval <= 0 {
		log.Info().Str("module", "app.reaper").Msg("reaper disabled")
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	log.Info().Str("module", "app.reaper").Dur("interval", r.cfg.Interval).Msg("reaper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			r.Sweep(r.now())
		}
	}
}
