package api

import (
	"log/slog"
	"net/http"

	"planning-poker/infrastructure/ws"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Authenticator ws.Authenticator
	Auth          *AuthHandler
	Rooms         *RoomHandler
	Health        *HealthHandler
	Gateway       http.Handler
}

func NewRouter(ginMode string, log *slog.Logger, h Handlers) *gin.Engine {
	gin.SetMode(ginMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(log))

	authenticated := AuthMiddleware(h.Authenticator)

	h.Auth.RegisterRoutes(engine.Group("/api/auth"), authenticated)
	h.Rooms.RegisterRoutes(engine.Group("/api/rooms", authenticated))
	engine.GET("/healthz", h.Health.health)
	// the gateway authenticates on its own to answer 401 before upgrading
	engine.GET("/ws", gin.WrapH(h.Gateway))

	engine.NoRoute(func(c *gin.Context) {
		standardResponse(c, http.StatusNotFound, statusError, nil, "page not found")
	})
	return engine
}
