package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
)

func runReportRouter(
	api *echo.Group,
	reportService services.ReportServiceInterface,
	logger *zap.Logger,
) {
	reportController := controllers.NewReportController(reportService, logger)

	api.GET("/orders/export", reportController.ExportOrders)
}
