package http

import (
	"strings"

	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	UserID   string  `json:"userId" binding:"required,max=64"`
	Nickname string  `json:"nickname" binding:"max=64"`
	Type     string  `json:"type" binding:"omitempty,oneof=user admin"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=2048"`
}

type updateUserRequest struct {
	Nickname *string `json:"nickname" binding:"omitempty,max=64"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=2048"`
	Status   *string `json:"status" binding:"omitempty,oneof=active inactive"`
}

type heartbeatRequest struct {
	UserID string `json:"userId" binding:"max=64"`
	RoomID string `json:"roomId" binding:"max=64"`
}

func (h *Handlers) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, h.Orch.CreateUser(orch.CreateUserRequest{
		UserID:   domain.UserID(strings.TrimSpace(req.UserID)),
		Nickname: req.Nickname,
		Type:     req.Type,
		Avatar:   req.Avatar,
	}))
}

func (h *Handlers) user(c *gin.Context) {
	respond(c, h.Orch.User(domain.UserID(c.Param("userId"))))
}

func (h *Handlers) updateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	respond(c, h.Orch.UpdateUser(domain.UserID(c.Param("userId")), orch.UpdateUserRequest{
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Status:   req.Status,
	}))
}

func (h *Handlers) deleteUser(c *gin.Context) {
	respond(c, h.Orch.DeleteUser(domain.UserID(c.Param("userId")), ""))
}

func (h *Handlers) heartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	uid := actingUser(c, req.UserID)
	res := h.Orch.Heartbeat(domain.UserID(uid), domain.RoomID(strings.TrimSpace(req.RoomID)))
	if res.Success {
		rememberUser(c, uid)
	}
	respond(c, res)
}
