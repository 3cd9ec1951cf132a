package http

import (
	"strings"

	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-gonic/gin"
)

type createRoomRequest struct {
	RoomID      string                   `json:"roomId" binding:"omitempty,max=64"`
	UserID      string                   `json:"userId" binding:"required,max=64"`
	Nickname    string                   `json:"nickname" binding:"max=64"`
	RoomName    string                   `json:"roomName" binding:"max=128"`
	MediaConfig *domain.MediaConfigInput `json:"mediaConfig"`
}

type joinRoomRequest struct {
	RoomID   string `json:"roomId" binding:"required,max=64"`
	UserID   string `json:"userId" binding:"required,max=64"`
	Nickname string `json:"nickname" binding:"max=64"`
}

type roomUserRequest struct {
	RoomID string `json:"roomId" binding:"required,max=64"`
	UserID string `json:"userId" binding:"max=64"`
}

type mediaConfigRequest struct {
	UserID      string                   `json:"userId" binding:"max=64"`
	MediaConfig *domain.MediaConfigInput `json:"mediaConfig"`
}

func badRequest(c *gin.Context, err error) {
	respond(c, orch.Fail(domain.Errorf(domain.ErrBadInput, "invalid request: %v", err)))
}

func (h *Handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := strings.TrimSpace(req.UserID)
	res := h.Orch.CreateRoom(orch.CreateRoomRequest{
		RoomID:   domain.RoomID(strings.TrimSpace(req.RoomID)),
		UserID:   domain.UserID(uid),
		Nickname: req.Nickname,
		RoomName: domain.RoomName(req.RoomName),
		Media:    req.MediaConfig,
	})
	if res.Success {
		rememberUser(c, uid)
	}
	respond(c, res)
}

func (h *Handlers) joinRoom(c *gin.Context) {
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := strings.TrimSpace(req.UserID)
	res := h.Orch.JoinRoom(orch.JoinRequest{
		RoomID:   domain.RoomID(strings.TrimSpace(req.RoomID)),
		UserID:   domain.UserID(uid),
		Nickname: req.Nickname,
	})
	if res.Success {
		rememberUser(c, uid)
	}
	respond(c, res)
}

func (h *Handlers) leaveRoom(c *gin.Context) {
	var req roomUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, h.Orch.LeaveRoom(orch.LeaveRequest{
		RoomID: domain.RoomID(strings.TrimSpace(req.RoomID)),
		UserID: domain.UserID(actingUser(c, req.UserID)),
	}))
}

func (h *Handlers) disbandRoom(c *gin.Context) {
	var req roomUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, h.Orch.DisbandRoom(domain.RoomID(strings.TrimSpace(req.RoomID)), domain.UserID(actingUser(c, req.UserID)), ""))
}

func (h *Handlers) deleteRoom(c *gin.Context) {
	uid := actingUser(c, c.Query("userId"))
	respond(c, h.Orch.DisbandRoom(domain.RoomID(c.Param("roomId")), domain.UserID(uid), ""))
}

func (h *Handlers) rooms(c *gin.Context) {
	respond(c, h.Orch.Rooms())
}

func (h *Handlers) room(c *gin.Context) {
	respond(c, h.Orch.Room(domain.RoomID(c.Param("roomId"))))
}

func (h *Handlers) roomUsers(c *gin.Context) {
	respond(c, h.Orch.RoomUsers(domain.RoomID(c.Param("roomId")), domain.UserID(strings.TrimSpace(c.Query("userId")))))
}

func (h *Handlers) updateMediaConfig(c *gin.Context) {
	var req mediaConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := actingUser(c, req.UserID)
	respond(c, h.Orch.UpdateMediaConfig(domain.RoomID(c.Param("roomId")), domain.UserID(uid), req.MediaConfig, ""))
}
