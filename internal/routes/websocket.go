package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
	appwebsocket "order-dispatch/pkg/websocket"
)

func runWebSocketRouter(e *echo.Echo, hub *appwebsocket.Hub, sessions *services.SessionRegistry, dedup *controllers.CommandDeduplicator, logger *zap.Logger) {
	ctrl := controllers.NewWebSocketController(hub, sessions, e.Validator, dedup, logger)
	e.GET("/ws/:panel", ctrl.ServeWs)
}
