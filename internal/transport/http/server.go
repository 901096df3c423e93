package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/arotu/chat-server/internal/auth"
	"github.com/arotu/chat-server/internal/chat"
	"github.com/arotu/chat-server/internal/config"
	"github.com/arotu/chat-server/internal/core"
	"github.com/arotu/chat-server/internal/store"
)

// NewServer builds the HTTP server with all REST and WebSocket routes.
func NewServer(cfg config.Config, deps Deps) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// Deps collects the services the transport layer exposes.
type Deps struct {
	Store       store.Store
	AuthService *auth.Service
	ChatService *chat.Service
	Hub         *core.Hub
	Log         *zerolog.Logger
}

// NewRouter wires handlers and middleware into a gin engine.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Log))
	router.Use(MetricsMiddleware())

	authHandlers := NewAuthHandlers(deps.AuthService, deps.Log)
	messageHandlers := NewMessageHandlers(deps.ChatService, deps.Log)
	roomHandlers := NewRoomHandlers(deps.Store, deps.Log)
	wsHandler := NewWSHandler(deps.Hub, deps.ChatService, deps.AuthService, deps.Log)

	router.GET("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.Handle)

	router.POST("/api/auth/register", authHandlers.Register)
	router.POST("/api/auth/login", authHandlers.Login)

	api := router.Group("/api", AuthMiddleware(deps.AuthService, deps.Log))
	{
		api.POST("/messages/private", messageHandlers.CreatePrivateMessage)
		api.GET("/messages/private/:userId", messageHandlers.ListPrivateMessages)
		api.POST("/messages/private/:userId/seen", messageHandlers.MarkSeen)
		api.GET("/messages/recent-conversations", messageHandlers.RecentConversations)
		api.GET("/messages/partners", messageHandlers.ConversationPartners)

		api.POST("/rooms", roomHandlers.CreateRoom)
		api.GET("/rooms", roomHandlers.ListRooms)
		api.GET("/rooms/:roomId", roomHandlers.GetRoom)
		api.POST("/rooms/:roomId/members", roomHandlers.JoinRoom)
		api.DELETE("/rooms/:roomId/members", roomHandlers.LeaveRoom)
		api.POST("/rooms/:roomId/admins", roomHandlers.AddAdmin)
		api.DELETE("/rooms/:roomId/admins", roomHandlers.RemoveAdmin)
		api.POST("/rooms/:roomId/messages", messageHandlers.CreateRoomMessage)
		api.GET("/rooms/:roomId/messages", messageHandlers.ListRoomMessages)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
