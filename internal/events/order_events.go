package events

import (
	"order-dispatch/internal/entities"
	"order-dispatch/pkg/constants"
)

const (
	OrdersReconciledEventName    = "orders.reconciled"
	ConnectionChangedEventName   = "feed.connection.changed"
	AlertSettingsLoadedEventName = "alert_settings.loaded"
)

// StatusChange - заказ перешёл из одного статуса в другой между двумя снимками.
type StatusChange struct {
	Order entities.Order
	From  constants.OrderStatus
	To    constants.OrderStatus
}

// CourierChange - у заказа сменился (или появился) курьер.
type CourierChange struct {
	Order entities.Order
	From  string
	To    string
}

// OrderDiff - разница между предыдущим и новым снимком очереди.
type OrderDiff struct {
	Initial        bool
	Added          []entities.Order
	Removed        []entities.Order
	StatusChanges  []StatusChange
	CourierChanges []CourierChange
}

func (d OrderDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.StatusChanges) == 0 && len(d.CourierChanges) == 0
}

// OrdersReconciledEvent - публикуется после каждого Reconcile, даже пустого.
type OrdersReconciledEvent struct {
	Diff   OrderDiff
	Orders []entities.Order
}

// Name - реализуем интерфейс eventbus.Event
func (e OrdersReconciledEvent) Name() string {
	return OrdersReconciledEventName
}

// ConnectionChangedEvent - состояние подписки на фид изменилось.
type ConnectionChangedEvent struct {
	Entity  string
	State   string
	Overall string
}

func (e ConnectionChangedEvent) Name() string {
	return ConnectionChangedEventName
}

// AlertSettingsLoadedEvent - настройки панелей перечитаны из хранилища.
type AlertSettingsLoadedEvent struct {
	Settings []entities.AlertSettings
}

func (e AlertSettingsLoadedEvent) Name() string {
	return AlertSettingsLoadedEventName
}
