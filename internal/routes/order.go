package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/middleware"
)

func runOrderRouter(
	api *echo.Group,
	orderService services.OrderServiceInterface,
	logger *zap.Logger,
	roleMW *middleware.RoleMiddleware,
) {
	orderCtrl := controllers.NewOrderController(orderService, logger)
	{
		api.POST("/orders", orderCtrl.CreateOrder)
		api.GET("/orders", orderCtrl.GetOrders)
		api.GET("/orders/pending-count", orderCtrl.GetPendingCount)
		api.PATCH("/orders/:id/status", orderCtrl.UpdateOrderStatus,
			roleMW.Require(constants.RoleAdmin, constants.RoleKitchen, constants.RoleCourier, constants.RoleSystem))
	}
}
