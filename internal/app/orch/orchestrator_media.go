package orch

import (
	"net/http"

	"github.com/dkeye/Lobby/internal/domain"
)

// UpdateMediaConfig replaces the media endpoint of a room. Only the creator may do it.
func (o *Orchestrator) UpdateMediaConfig(roomID domain.RoomID, requester domain.UserID, in *domain.MediaConfigInput, origin string) Result {
	return guard("updateMediaConfig", func() Result {
		if roomID == "" || requester == "" {
			return Fail(domain.Errorf(domain.ErrBadInput, "roomId and userId are required"))
		}
		info, err := o.State.UpdateMediaConfig(roomID, requester, in, origin)
		if err != nil {
			return Fail(err)
		}
		return ok(http.StatusOK, "media config updated", info)
	})
}
