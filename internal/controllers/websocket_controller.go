package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/utils"
	appwebsocket "order-dispatch/pkg/websocket"
)

const commandTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketController struct {
	hub       *appwebsocket.Hub
	sessions  *services.SessionRegistry
	validator echo.Validator
	dedup     *CommandDeduplicator
	logger    *zap.Logger
}

func NewWebSocketController(
	hub *appwebsocket.Hub,
	sessions *services.SessionRegistry,
	validator echo.Validator,
	dedup *CommandDeduplicator,
	logger *zap.Logger,
) *WebSocketController {
	return &WebSocketController{
		hub:       hub,
		sessions:  sessions,
		validator: validator,
		dedup:     dedup,
		logger:    logger,
	}
}

// ServeWs открывает панель: /ws/:panel?customer_id=...&courier_id=...
func (c *WebSocketController) ServeWs(ctx echo.Context) error {
	opts := services.SessionOptions{
		Panel:      constants.Panel(ctx.Param("panel")),
		CustomerID: ctx.QueryParam("customer_id"),
		CourierID:  ctx.QueryParam("courier_id"),
	}
	if !opts.Panel.Valid() {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusNotFound, "Панель не найдена", nil,
				map[string]interface{}{"panel": ctx.Param("panel")}),
			c.logger)
	}
	if opts.Panel == constants.PanelStorefront && opts.CustomerID == "" {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Для витрины нужен customer_id", nil, nil),
			c.logger)
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Error("WebSocket: не удалось улучшить соединение", zap.Error(err))
		return err
	}

	client := appwebsocket.NewClient(c.hub, conn, opts.Panel.String(), c.logger)
	session, err := c.sessions.Open(opts, client)
	if err != nil {
		c.logger.Error("WebSocket: сессия панели не открыта", zap.String("panel", opts.Panel.String()), zap.Error(err))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session failed"))
		return conn.Close()
	}
	client.SessionID = session.ID()
	c.hub.Register(client)

	go client.WritePump()
	go func() {
		client.ReadPump(func(message []byte) {
			result := c.HandleCommand(session, message)
			if err := client.Send(services.MessageCommandResult, result); err != nil {
				c.logger.Debug("результат команды не отправлен", zap.Error(err))
			}
		})
		c.sessions.Close(session.ID())
	}()

	c.logger.Info("WebSocket: панель подключена",
		zap.String("panel", opts.Panel.String()), zap.String("session_id", session.ID()))
	return nil
}

// HandleCommand выполняет одну команду панели и всегда возвращает результат для неё.
func (c *WebSocketController) HandleCommand(session *services.PanelSession, raw []byte) dto.CommandResultDTO {
	var cmd dto.PanelCommandDTO
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return failed(cmd, apperrors.NewInvalidInputError("неверный формат команды"))
	}
	if err := c.validator.Validate(&cmd); err != nil {
		return failed(cmd, err)
	}
	if !c.dedup.TryAcquire(session.ID(), cmd.RequestID) {
		return dto.CommandResultDTO{RequestID: cmd.RequestID, Command: cmd.Type, OK: true, NoOp: true}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	body, noOp, err := c.dispatch(ctx, session, cmd)
	if err != nil {
		c.logger.Debug("команда панели отклонена",
			zap.String("session_id", session.ID()), zap.String("command", cmd.Type), zap.Error(err))
		return failed(cmd, err)
	}
	return dto.CommandResultDTO{RequestID: cmd.RequestID, Command: cmd.Type, OK: true, NoOp: noOp, Body: body}
}

func (c *WebSocketController) dispatch(ctx context.Context, s *services.PanelSession, cmd dto.PanelCommandDTO) (interface{}, bool, error) {
	switch cmd.Type {
	case "audio_unlocked":
		s.InitializeAudio()
		return s.AlertFlags(), false, nil

	case "visibility":
		var p dto.VisibilityPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		s.SetVisible(p.Visible)
		return nil, false, nil

	case "update_status":
		var p dto.UpdateStatusPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		res, err := s.UpdateOrderStatus(ctx, p.OrderID, constants.OrderStatus(p.Status))
		if err != nil {
			return nil, false, err
		}
		return dto.NewOrderResponseDTO(res.Order), res.NoOp, nil

	case "assign_courier":
		var p dto.AssignCourierPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		res, err := s.AssignCourier(ctx, p.OrderID, p.CourierID)
		if err != nil {
			return nil, false, err
		}
		return dto.NewOrderResponseDTO(res.Order), res.NoOp, nil

	case "delete_order":
		var p dto.OrderRefPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		return nil, false, s.DeleteOrder(ctx, p.OrderID)

	case "mark_alerted":
		var p dto.MarkAlertedPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		panels := make([]constants.Panel, 0, len(p.Panels))
		for _, name := range p.Panels {
			panels = append(panels, constants.Panel(name))
		}
		s.MarkOrderAsAlerted(p.OrderID, panels...)
		return nil, false, nil

	case "stop_repeat":
		s.StopKitchenRepeat()
		return nil, false, nil

	case "preview_sound":
		var p dto.PreviewSoundPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		return nil, false, s.PreviewSound(p.SoundID, p.Volume)

	case "system_alert":
		if s.Panel() != constants.PanelAdmin {
			return nil, false, apperrors.NewHttpError(http.StatusForbidden, "Системный сигнал доступен только администратору", nil, nil)
		}
		var p dto.SystemAlertPayload
		if err := c.decode(cmd, &p); err != nil {
			return nil, false, err
		}
		return map[string]int{"played": c.sessions.SystemAlert(p.OrderID, p.Message)}, false, nil
	}
	return nil, false, apperrors.NewInvalidInputError("неизвестная команда %q", cmd.Type)
}

func (c *WebSocketController) decode(cmd dto.PanelCommandDTO, into interface{}) error {
	if len(cmd.Payload) == 0 {
		return apperrors.NewInvalidInputError("команда %s без payload", cmd.Type)
	}
	if err := json.Unmarshal(cmd.Payload, into); err != nil {
		return apperrors.NewInvalidInputError("неверный payload команды %s", cmd.Type)
	}
	return c.validator.Validate(into)
}

func failed(cmd dto.PanelCommandDTO, err error) dto.CommandResultDTO {
	code, message := utils.StatusFor(err)
	return dto.CommandResultDTO{
		RequestID: cmd.RequestID,
		Command:   cmd.Type,
		OK:        false,
		Error:     message,
		Code:      code,
	}
}
