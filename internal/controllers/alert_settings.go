package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/utils"
)

type AlertSettingsController struct {
	settingsService services.AlertSettingsServiceInterface
	sounds          services.SoundCatalogInterface
	logger          *zap.Logger
}

func NewAlertSettingsController(
	settingsService services.AlertSettingsServiceInterface,
	sounds services.SoundCatalogInterface,
	logger *zap.Logger,
) *AlertSettingsController {
	return &AlertSettingsController{settingsService: settingsService, sounds: sounds, logger: logger}
}

func (c *AlertSettingsController) GetAlertSettings(ctx echo.Context) error {
	settings, err := c.settingsService.List(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, settings, "Настройки звука получены", http.StatusOK)
}

func (c *AlertSettingsController) UpdateAlertSettings(ctx echo.Context) error {
	panel := constants.Panel(ctx.Param("panel"))
	if !panel.HasAlerts() {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusNotFound, "Панель не найдена", nil,
				map[string]interface{}{"panel": ctx.Param("panel")}),
			c.logger)
	}

	var req dto.UpdateAlertSettingsDTO
	if err := ctx.Bind(&req); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil),
			c.logger)
	}
	if err := ctx.Validate(&req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	reqCtx, cancel := utils.ContextWithTimeout(ctx, 10)
	defer cancel()

	saved, err := c.settingsService.Update(reqCtx, panel, req.ToPatch())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, saved, "Настройки звука обновлены", http.StatusOK)
}

func (c *AlertSettingsController) GetSounds(ctx echo.Context) error {
	return utils.SuccessResponse(ctx, c.sounds.All(), "Каталог звуков", http.StatusOK)
}
