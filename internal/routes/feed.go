package routes

import (
	"github.com/labstack/echo/v4"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
)

func runFeedRouter(api *echo.Group, orderService services.OrderServiceInterface, sessions *services.SessionRegistry) {
	ctrl := controllers.NewFeedController(orderService.Monitor(), sessions)
	api.GET("/feed/status", ctrl.GetFeedStatus)
}
