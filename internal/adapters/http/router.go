package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Lobby/internal/adapters/signal"
	"github.com/dkeye/Lobby/internal/app/orch"
	"github.com/dkeye/Lobby/internal/config"
	"github.com/dkeye/Lobby/internal/stats"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every client with a long-lived cookie, used for log correlation.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Handlers serves the request/response entry point.
type Handlers struct {
	Orch  *orch.Orchestrator
	Stats *stats.StatsUpdater
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, ws *signal.SignalWSController, su *stats.StatsUpdater) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.CustomRecovery(func(c *gin.Context, rec any) {
		log.Error().Str("module", "adapters.http").Str("path", c.Request.URL.Path).Interface("panic", rec).Msg("recovered")
		c.AbortWithStatusJSON(http.StatusInternalServerError, orch.Result{Code: http.StatusInternalServerError, Message: "internal server error"})
	}))

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LobbySessions", store))
	r.Use(ClientTokenMiddleware())

	h := &Handlers{Orch: o, Stats: su}

	r.GET("/ws", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	api := r.Group("/api")
	api.GET("", h.index)
	api.GET("/health", h.health)
	if su != nil {
		api.GET("/debug/vars", gin.WrapF(su.Handler))
	}

	room := api.Group("/room")
	room.POST("/create", h.createRoom)
	room.POST("/join", h.joinRoom)
	room.POST("/leave", h.leaveRoom)
	room.POST("/disband", h.disbandRoom)
	room.GET("", h.rooms)
	room.GET("/rooms", h.rooms)
	room.GET("/:roomId", h.room)
	room.DELETE("/:roomId", h.deleteRoom)
	room.GET("/:roomId/users", h.roomUsers)
	room.PUT("/:roomId/media-config", h.updateMediaConfig)

	user := api.Group("/user")
	user.POST("", h.createUser)
	user.POST("/heartbeat", h.heartbeat)
	user.GET("/:userId", h.user)
	user.PUT("/:userId", h.updateUser)
	user.DELETE("/:userId", h.deleteUser)

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, orch.Result{Code: http.StatusNotFound, Message: "endpoint not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

// WithCORS wraps the engine so browser clients on the allowed origins can call the API.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(h)
}

func respond(c *gin.Context, res orch.Result) {
	c.JSON(res.Code, res)
}

func (h *Handlers) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "lobby server is running",
		"endpoints": gin.H{
			"createRoom":        "POST /api/room/create",
			"joinRoom":          "POST /api/room/join",
			"leaveRoom":         "POST /api/room/leave",
			"disbandRoom":       "POST /api/room/disband or DELETE /api/room/:roomId",
			"getRooms":          "GET /api/room/rooms or /api/room",
			"getRoomInfo":       "GET /api/room/:roomId",
			"getRoomUsers":      "GET /api/room/:roomId/users",
			"updateMediaConfig": "PUT /api/room/:roomId/media-config",
			"createUser":        "POST /api/user",
			"getUser":           "GET /api/user/:userId",
			"updateUser":        "PUT /api/user/:userId",
			"deleteUser":        "DELETE /api/user/:userId",
			"heartbeat":         "POST /api/user/heartbeat",
			"healthCheck":       "GET /api/health",
			"signal":            "GET /ws",
		},
	})
}

func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"stats":     h.Orch.Stats(),
	})
}

const sessionUserKey = "uid"

// rememberUser stores the acting user id in the cookie session.
func rememberUser(c *gin.Context, uid string) {
	if uid == "" {
		return
	}
	s := sessions.Default(c)
	s.Set(sessionUserKey, uid)
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}
}

// actingUser returns the named user or the one remembered for this client.
func actingUser(c *gin.Context, named string) string {
	if named = strings.TrimSpace(named); named != "" {
		return named
	}
	if v, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
		return v
	}
	return ""
}
