package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/middleware"
)

func runAlertSettingsRouter(
	api *echo.Group,
	settingsService services.AlertSettingsServiceInterface,
	sounds services.SoundCatalogInterface,
	logger *zap.Logger,
	roleMW *middleware.RoleMiddleware,
) {
	ctrl := controllers.NewAlertSettingsController(settingsService, sounds, logger)

	api.GET("/alert-settings", ctrl.GetAlertSettings)
	api.PUT("/alert-settings/:panel", ctrl.UpdateAlertSettings, roleMW.Require(constants.RoleAdmin))
	api.GET("/sounds", ctrl.GetSounds)
}
