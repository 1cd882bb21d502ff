package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/entities"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/utils"
)

type ReportController struct {
	reportService services.ReportServiceInterface
	logger        *zap.Logger
}

func NewReportController(reportService services.ReportServiceInterface, logger *zap.Logger) *ReportController {
	return &ReportController{reportService: reportService, logger: logger}
}

// ExportOrders - журнал заказов. format=xlsx отдаёт файл, иначе JSON.
func (c *ReportController) ExportOrders(ctx echo.Context) error {
	filter, err := parseJournalFilter(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	format := strings.ToLower(ctx.QueryParam("format"))
	c.logger.Debug("Запрос журнала заказов", zap.Any("filter", filter), zap.String("format", format))

	reqCtx, cancel := utils.ContextWithTimeout(ctx, 30)
	defer cancel()

	orders, err := c.reportService.OrderJournal(reqCtx, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if format != "xlsx" {
		return utils.SuccessResponse(ctx, dto.NewOrderListResponseDTO(orders), "Журнал заказов сформирован", http.StatusOK)
	}

	fileName := fmt.Sprintf("orders_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return c.reportService.WriteJournalXLSX(ctx.Response().Writer, orders)
}

func parseJournalFilter(ctx echo.Context) (entities.OrderFilter, error) {
	var filter entities.OrderFilter
	var raw []string
	if arr, ok := ctx.QueryParams()["status[]"]; ok {
		raw = arr
	} else if s := ctx.QueryParam("status"); s != "" {
		raw = strings.Split(s, ",")
	}
	for _, s := range raw {
		st := constants.OrderStatus(strings.TrimSpace(s))
		if !st.Valid() {
			return filter, apperrors.NewInvalidInputError("неизвестный статус %q", s)
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	filter.CourierID = ctx.QueryParam("courier_id")
	filter.CustomerID = ctx.QueryParam("customer_id")
	return filter, nil
}
