package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/events"
	"order-dispatch/pkg/constants"
	"order-dispatch/pkg/scheduler"
)

func TestAlertEvent_TableIsComplete(t *testing.T) {
	seen := map[AlertEvent]bool{}
	for _, ev := range AllAlertEvents {
		assert.False(t, seen[ev], "дубль %s", ev)
		seen[ev] = true
		assert.NotEmpty(t, ev.Panels(), "у события %s нет панелей", ev)
		for _, p := range ev.Panels() {
			assert.True(t, p.HasAlerts(), "%s направлено на панель без звука %s", ev, p)
		}
	}
	assert.False(t, AlertEvent("birthday").Valid())

	// Каждое событие, которое порождают статусы, есть в таблице.
	for _, st := range constants.AllStatuses {
		for _, ev := range eventsOnEnter(st) {
			assert.True(t, seen[ev], "статус %s порождает событие вне таблицы: %s", st, ev)
		}
	}
}

func TestAlertRouter_RoutesOnlyHostedPanels(t *testing.T) {
	f := newEngineFixture(t)
	router := NewAlertRouter(f.engine, []constants.Panel{constants.PanelCourier}, zap.NewNop())

	played := router.Route(EventOrderReady, "o1")
	assert.Equal(t, map[constants.Panel]bool{constants.PanelCourier: true}, played)
	assert.Equal(t, 0, f.player.count(constants.PanelAdmin))

	assert.Empty(t, router.Route(AlertEvent("unknown"), "o1"))
	assert.False(t, router.PlayForPanel(EventNewOrder, "o2", constants.PanelCourier), "курьер не в таблице new_order")
	assert.False(t, router.PlayForPanel(EventNewOrder, "o2", constants.PanelAdmin), "админ не обслуживается сессией")
}

func kitchenRouter(t *testing.T) (*engineFixture, *AlertRouter) {
	f := newEngineFixture(t)
	return f, NewAlertRouter(f.engine, []constants.Panel{constants.PanelKitchen}, zap.NewNop())
}

func TestAlertRouter_InitialDiffIsSilent(t *testing.T) {
	f, router := kitchenRouter(t)
	router.HandleDiff(events.OrderDiff{Initial: true, Added: []entities.Order{{ID: "o1", Status: constants.StatusPending}}})
	assert.Equal(t, 0, f.player.count(constants.PanelKitchen))
	assert.False(t, f.engine.Flags().KitchenRepeating)
}

func TestAlertRouter_NewOrderStartsAndLeavingStopsRepeat(t *testing.T) {
	f, router := kitchenRouter(t)
	order := entities.Order{ID: "o1", Status: constants.StatusPending}

	router.HandleDiff(events.OrderDiff{Added: []entities.Order{order}})
	assert.Equal(t, 1, f.player.count(constants.PanelKitchen))
	assert.True(t, f.engine.Flags().KitchenRepeating)
	assert.Equal(t, "o1", f.engine.Flags().RepeatOrderID)

	f.clock.Advance(40 * time.Second)
	assert.Equal(t, 2, f.player.count(constants.PanelKitchen))

	order.Status = constants.StatusPreparing
	router.HandleDiff(events.OrderDiff{StatusChanges: []events.StatusChange{{Order: order, From: constants.StatusPending, To: constants.StatusPreparing}}})
	assert.False(t, f.engine.Flags().KitchenRepeating)
	assert.True(t, f.engine.IsAlerted(constants.PanelKitchen, "o1"))

	f.clock.Advance(5 * time.Minute)
	assert.Equal(t, 2, f.player.count(constants.PanelKitchen))
}

func TestAlertRouter_StatusChangeIsNewEvent(t *testing.T) {
	f := newEngineFixture(t)
	router := NewAlertRouter(f.engine, []constants.Panel{constants.PanelAdmin}, zap.NewNop())
	order := entities.Order{ID: "o1", Status: constants.StatusPending}

	router.HandleDiff(events.OrderDiff{Added: []entities.Order{order}})
	assert.Equal(t, 1, f.player.count(constants.PanelAdmin), "new_order")

	f.clock.Advance(5 * time.Second)
	order.Status = constants.StatusReady
	router.HandleDiff(events.OrderDiff{StatusChanges: []events.StatusChange{{Order: order, From: constants.StatusPreparing, To: constants.StatusReady}}})
	assert.Equal(t, 2, f.player.count(constants.PanelAdmin), "order_ready на том же заказе не глушится")

	f.clock.Advance(5 * time.Second)
	order.Status = constants.StatusCancelled
	router.HandleDiff(events.OrderDiff{StatusChanges: []events.StatusChange{{Order: order, From: constants.StatusReady, To: constants.StatusCancelled}}})
	assert.Equal(t, 3, f.player.count(constants.PanelAdmin))
}

func TestAlertRouter_RemovedAndDeliveredAreMarkedEverywhere(t *testing.T) {
	f, router := kitchenRouter(t)
	router.HandleDiff(events.OrderDiff{Added: []entities.Order{{ID: "o1", Status: constants.StatusPending}}})
	assert.True(t, f.engine.Flags().KitchenRepeating)

	router.HandleDiff(events.OrderDiff{Removed: []entities.Order{{ID: "o1", Status: constants.StatusPending}}})
	assert.False(t, f.engine.Flags().KitchenRepeating)
	for _, p := range constants.AlertPanels {
		assert.True(t, f.engine.IsAlerted(p, "o1"))
	}

	delivered := entities.Order{ID: "o2", Status: constants.StatusDelivered}
	router.HandleDiff(events.OrderDiff{StatusChanges: []events.StatusChange{{Order: delivered, From: constants.StatusOutForDelivery, To: constants.StatusDelivered}}})
	for _, p := range constants.AlertPanels {
		assert.True(t, f.engine.IsAlerted(p, "o2"))
	}
}

func TestAlertRouter_LockedAudioDoesNotStartRepeat(t *testing.T) {
	f := &engineFixture{player: &fakePlayer{}, notifier: &fakeNotifier{}}
	f.clock = scheduler.NewFake(testStart)
	engine := NewAlertEngine(f.clock, f.player, f.notifier, nil, NewSoundCatalog(builtinSounds), AlertEngineOptions{}, zap.NewNop())
	defer engine.Close()
	router := NewAlertRouter(engine, []constants.Panel{constants.PanelKitchen}, zap.NewNop())

	router.HandleDiff(events.OrderDiff{Added: []entities.Order{{ID: "o1", Status: constants.StatusPending}}})
	assert.False(t, engine.Flags().KitchenRepeating)
	assert.Len(t, f.notifier.toasts, 1)
}
