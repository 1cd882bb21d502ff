package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/middleware"
	appwebsocket "order-dispatch/pkg/websocket"
)

// Deps - собранные в main сервисы, которые раздаются роутерам.
type Deps struct {
	OrderService         services.OrderServiceInterface
	ReportService        services.ReportServiceInterface
	AlertSettingsService services.AlertSettingsServiceInterface
	Sounds               services.SoundCatalogInterface
	Sessions             *services.SessionRegistry
	Hub                  *appwebsocket.Hub
	Dedup                *controllers.CommandDeduplicator
	Logger               *zap.Logger
}

func InitRouter(e *echo.Echo, deps Deps) {
	deps.Logger.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	roleMW := middleware.NewRoleMiddleware(deps.Logger)

	runOrderRouter(api, deps.OrderService, deps.Logger, roleMW)
	runReportRouter(api, deps.ReportService, deps.Logger)
	runAlertSettingsRouter(api, deps.AlertSettingsService, deps.Sounds, deps.Logger, roleMW)
	runFeedRouter(api, deps.OrderService, deps.Sessions)
	runWebSocketRouter(e, deps.Hub, deps.Sessions, deps.Dedup, deps.Logger)

	deps.Logger.Info("INIT_ROUTER: Создание маршрутов завершено")
}
