package services

import (
	"context"

	"go.uber.org/zap"

	"order-dispatch/internal/events"
	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/eventbus"
)

// AlertEvent - событие, на которое может прозвучать сигнал.
type AlertEvent string

const (
	EventNewOrder       AlertEvent = "new_order"
	EventOrderToKitchen AlertEvent = "order_to_kitchen"
	EventOrderReady     AlertEvent = "order_ready"
	EventOrderCancelled AlertEvent = "order_cancelled"
	EventSystemAlert    AlertEvent = "system_alert"
)

// AllAlertEvents - полный список событий.
var AllAlertEvents = []AlertEvent{
	EventNewOrder,
	EventOrderToKitchen,
	EventOrderReady,
	EventOrderCancelled,
	EventSystemAlert,
}

// Panels - статическая таблица «событие → панели».
func (e AlertEvent) Panels() []constants.Panel {
	switch e {
	case EventNewOrder:
		return []constants.Panel{constants.PanelAdmin}
	case EventOrderToKitchen:
		return []constants.Panel{constants.PanelKitchen}
	case EventOrderReady:
		return []constants.Panel{constants.PanelAdmin, constants.PanelCourier}
	case EventOrderCancelled:
		return []constants.Panel{constants.PanelAdmin, constants.PanelKitchen}
	case EventSystemAlert:
		return []constants.Panel{constants.PanelAdmin, constants.PanelKitchen, constants.PanelCourier}
	}
	return nil
}

func (e AlertEvent) Valid() bool {
	return len(e.Panels()) > 0
}

func (e AlertEvent) targets(panel constants.Panel) bool {
	for _, p := range e.Panels() {
		if p == panel {
			return true
		}
	}
	return false
}

// eventsOnEnter - какие события порождает вход заказа в статус.
func eventsOnEnter(status constants.OrderStatus) []AlertEvent {
	switch status {
	case constants.StatusPending:
		return []AlertEvent{EventNewOrder, EventOrderToKitchen}
	case constants.StatusConfirmed:
		return []AlertEvent{EventOrderToKitchen}
	case constants.StatusReady:
		return []AlertEvent{EventOrderReady}
	case constants.StatusCancelled:
		return []AlertEvent{EventOrderCancelled}
	}
	return nil
}

func isKitchenQueued(s constants.OrderStatus) bool {
	return s == constants.StatusPending || s == constants.StatusConfirmed
}

// AlertRouter раздаёт события по панелям, которые обслуживает сессия.
type AlertRouter struct {
	engine *AlertEngine
	hosted map[constants.Panel]bool
	logger *zap.Logger
}

func NewAlertRouter(engine *AlertEngine, hosted []constants.Panel, logger *zap.Logger) *AlertRouter {
	h := make(map[constants.Panel]bool, len(hosted))
	for _, p := range hosted {
		h[p] = true
	}
	return &AlertRouter{engine: engine, hosted: h, logger: logger}
}

// Route вызывает движок для каждой обслуживаемой панели события и возвращает, где прозвучало.
func (r *AlertRouter) Route(event AlertEvent, orderID string) map[constants.Panel]bool {
	played := make(map[constants.Panel]bool)
	panels := event.Panels()
	if len(panels) == 0 {
		r.logger.Warn("неизвестное событие оповещения", zap.String("event", string(event)))
		return played
	}
	for _, p := range panels {
		if !r.hosted[p] {
			continue
		}
		played[p] = r.engine.Play(p, orderID)
	}
	return played
}

// PlayForPanel - сигнал события на одной панели. Панель вне таблицы события - no-op.
func (r *AlertRouter) PlayForPanel(event AlertEvent, orderID string, panel constants.Panel) bool {
	if !event.targets(panel) {
		r.logger.Debug("панель не подписана на событие",
			zap.String("event", string(event)), zap.String("panel", panel.String()))
		return false
	}
	if !r.hosted[panel] {
		return false
	}
	return r.engine.Play(panel, orderID)
}

// HandleDiff превращает дифф очереди в сигналы. Базовая сверка сессии не озвучивается.
func (r *AlertRouter) HandleDiff(diff events.OrderDiff) {
	if diff.Initial {
		return
	}
	for _, o := range diff.Added {
		r.enter(o.ID, o.Status)
	}
	for _, sc := range diff.StatusChanges {
		if isKitchenQueued(sc.From) && !isKitchenQueued(sc.To) {
			r.engine.MarkAlerted(sc.Order.ID, constants.PanelKitchen)
		}
		// Новый статус - новое событие: прежняя отметка по паре не должна его глушить.
		for _, ev := range eventsOnEnter(sc.To) {
			r.engine.ClearAlerted(sc.Order.ID, ev.Panels()...)
		}
		r.enter(sc.Order.ID, sc.To)
	}
	for _, o := range diff.Removed {
		r.engine.MarkAlerted(o.ID)
	}
}

func (r *AlertRouter) enter(orderID string, status constants.OrderStatus) {
	if status == constants.StatusDelivered {
		r.engine.MarkAlerted(orderID)
		return
	}
	for _, ev := range eventsOnEnter(status) {
		played := r.Route(ev, orderID)
		if ev == EventOrderToKitchen && played[constants.PanelKitchen] {
			r.engine.StartKitchenRepeat(orderID)
		}
	}
}

// OnOrdersReconciled - слушатель шины сессии.
func (r *AlertRouter) OnOrdersReconciled(ctx context.Context, event eventbus.Event) error {
	if e, ok := event.(events.OrdersReconciledEvent); ok {
		r.HandleDiff(e.Diff)
	}
	return nil
}
