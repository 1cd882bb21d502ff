package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/utils"
)

type FeedController struct {
	monitor  *services.ConnectionMonitor
	sessions *services.SessionRegistry
}

func NewFeedController(monitor *services.ConnectionMonitor, sessions *services.SessionRegistry) *FeedController {
	return &FeedController{monitor: monitor, sessions: sessions}
}

type feedStatusResponse struct {
	Overall  string            `json:"overall"`
	Feeds    map[string]string `json:"feeds"`
	Sessions map[string]int    `json:"sessions"`
}

// GetFeedStatus - состояние ленты изменений процесса и число открытых панелей.
func (c *FeedController) GetFeedStatus(ctx echo.Context) error {
	status := services.FeedStatus(c.monitor)
	sessions := make(map[string]int)
	for _, p := range []constants.Panel{constants.PanelStorefront, constants.PanelAdmin, constants.PanelKitchen, constants.PanelCourier} {
		sessions[p.String()] = 0
	}
	for p, n := range c.sessions.Count() {
		sessions[p.String()] = n
	}
	return utils.SuccessResponse(ctx, feedStatusResponse{
		Overall:  status.Overall,
		Feeds:    status.Feeds,
		Sessions: sessions,
	}, "Состояние ленты изменений", http.StatusOK)
}
