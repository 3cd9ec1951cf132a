package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	RoomsCreated      = "RoomsCreated"
	RoomsDisbanded    = "RoomsDisbanded"
	RoomsReaped       = "RoomsReaped"
	UsersJoined       = "UsersJoined"
	UsersLeft         = "UsersLeft"
	UsersExpired      = "UsersExpired"
	MediaConfigsSaved = "MediaConfigsUpdated"
)

// Snapshotter reports the current registry sizes.
type Snapshotter interface {
	Stats() core.Stats
}

// StatsUpdater turns domain events into expvar counters.
type StatsUpdater struct {
	vars *expvar.Map
}

func NewStatsUpdater(state Snapshotter) *StatsUpdater {
	su := &StatsUpdater{vars: new(expvar.Map).Init()}
	for _, name := range []string{RoomsCreated, RoomsDisbanded, RoomsReaped, UsersJoined, UsersLeft, UsersExpired, MediaConfigsSaved} {
		su.vars.Set(name, new(expvar.Int))
	}
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))
	if state != nil {
		su.vars.Set("Registry", expvar.Func(func() any {
			return state.Stats()
		}))
	}
	return su
}

// Run consumes events until the channel is closed.
func (su *StatsUpdater) Run(events <-chan domain.Event) {
	for ev := range events {
		su.Observe(ev)
	}
}

func (su *StatsUpdater) Observe(ev domain.Event) {
	switch e := ev.(type) {
	case domain.RoomCreated:
		su.incr(RoomsCreated)
	case domain.UserJoined:
		su.incr(UsersJoined)
	case domain.UserLeft:
		su.incr(UsersLeft)
		if e.Reason == domain.LeaveExpired {
			su.incr(UsersExpired)
		}
	case domain.RoomDisbanded:
		su.incr(RoomsDisbanded)
		if e.Reason == domain.DisbandIdle {
			su.incr(RoomsReaped)
		}
	case domain.MediaConfigUpdated:
		su.incr(MediaConfigsSaved)
	}
}

func (su *StatsUpdater) incr(name string) {
	metric, ok := su.vars.Get(name).(*expvar.Int)
	if !ok {
		log.Error().Str("module", "stats").Str("metric", name).Msg("metric not registered")
		return
	}
	metric.Add(1)
}

// Value returns a counter, or 0 when it is unknown.
func (su *StatsUpdater) Value(name string) int64 {
	if metric, ok := su.vars.Get(name).(*expvar.Int); ok {
		return metric.Value()
	}
	return 0
}

func (su *StatsUpdater) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		if err := json.Unmarshal([]byte(kv.Value.String()), &value); err == nil {
			data[kv.Key] = value
		}
	})
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Str("module", "stats").Msg("encode vars")
	}
}
