package stats

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats core.Stats

func (f fixedStats) Stats() core.Stats { return core.Stats(f) }

func TestObserveCountsEvents(t *testing.T) {
	su := NewStatsUpdater(nil)

	events := make(chan domain.Event, 8)
	events <- domain.RoomCreated{}
	events <- domain.UserJoined{}
	events <- domain.UserLeft{Reason: domain.LeaveExplicit}
	events <- domain.UserLeft{Reason: domain.LeaveExpired}
	events <- domain.RoomDisbanded{Reason: domain.DisbandRequested}
	events <- domain.RoomDisbanded{Reason: domain.DisbandIdle}
	events <- domain.MediaConfigUpdated{}
	close(events)
	su.Run(events)

	assert.Equal(t, int64(1), su.Value(RoomsCreated))
	assert.Equal(t, int64(1), su.Value(UsersJoined))
	assert.Equal(t, int64(2), su.Value(UsersLeft))
	assert.Equal(t, int64(1), su.Value(UsersExpired))
	assert.Equal(t, int64(2), su.Value(RoomsDisbanded))
	assert.Equal(t, int64(1), su.Value(RoomsReaped))
	assert.Equal(t, int64(1), su.Value(MediaConfigsSaved))
	assert.Zero(t, su.Value("Unknown"))
}

func TestHandlerReportsCountersAndRegistry(t *testing.T) {
	su := NewStatsUpdater(fixedStats{Rooms: 3, TotalUsers: 7, OnlineUsers: 5, ActiveRooms: 3})
	su.Observe(domain.RoomCreated{})

	rec := httptest.NewRecorder()
	su.Handler(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1, body[RoomsCreated])
	assert.Contains(t, body, "Uptime")
	registry, ok := body["Registry"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, registry["totalUsers"])
}

func TestUpdatersAreIndependent(t *testing.T) {
	a := NewStatsUpdater(nil)
	b := NewStatsUpdater(nil)
	a.Observe(domain.UserJoined{})

	assert.Equal(t, int64(1), a.Value(UsersJoined))
	assert.Zero(t, b.Value(UsersJoined))
}
