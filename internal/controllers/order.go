package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/middleware"
	"order-dispatch/pkg/utils"
)

type OrderController struct {
	orderService services.OrderServiceInterface
	logger       *zap.Logger
}

func NewOrderController(orderService services.OrderServiceInterface, logger *zap.Logger) *OrderController {
	return &OrderController{orderService: orderService, logger: logger}
}

// CreateOrder - оформление заказа на витрине.
func (c *OrderController) CreateOrder(ctx echo.Context) error {
	var req dto.CreateOrderDTO
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

	order, err := c.orderService.Checkout(reqCtx, req)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.NewOrderResponseDTO(order), "Заказ успешно оформлен", http.StatusCreated)
}

func (c *OrderController) GetOrders(ctx echo.Context) error {
	status := constants.OrderStatus(ctx.QueryParam("status"))
	if status != "" && !status.Valid() {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неизвестный статус", nil,
				map[string]interface{}{"status": string(status)}),
			c.logger)
	}
	orders := c.orderService.List(status)
	return utils.SuccessResponse(ctx, dto.NewOrderListResponseDTO(orders), "Список заказов успешно получен", http.StatusOK)
}

func (c *OrderController) GetPendingCount(ctx echo.Context) error {
	return utils.SuccessResponse(ctx, dto.PendingCountDTO{Count: c.orderService.PendingCount()},
		"Количество заказов в ожидании", http.StatusOK)
}

// UpdateOrderStatus - смена статуса от имени роли из заголовка (в том числе колбэк оплаты с ролью system).
func (c *OrderController) UpdateOrderStatus(ctx echo.Context) error {
	id := ctx.Param("id")
	var req dto.UpdateOrderStatusDTO
	if err := ctx.Bind(&req); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil),
			c.logger)
	}
	if err := ctx.Validate(&req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	role, _ := middleware.ActorRole(ctx.Request().Context())

	reqCtx, cancel := utils.ContextWithTimeout(ctx, 10)
	defer cancel()

	res, err := c.orderService.UpdateStatus(reqCtx, id, constants.OrderStatus(req.Status), role)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	message := "Статус заказа обновлён"
	if res.NoOp {
		message = "Заказ уже в этом статусе"
	}
	return utils.SuccessResponse(ctx, dto.NewOrderResponseDTO(res.Order), message, http.StatusOK)
}
