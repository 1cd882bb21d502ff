package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/scheduler"
	"order-dispatch/pkg/utils"
)

type sentMessage struct {
	Type    string
	Payload interface{}
}

type recordingOutbound struct {
	mu   sync.Mutex
	msgs []sentMessage
}

func (o *recordingOutbound) Send(msgType string, payload interface{}) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, sentMessage{Type: msgType, Payload: payload})
	return nil
}

func (o *recordingOutbound) count(msgType string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func (o *recordingOutbound) last(msgType string) (interface{}, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Type == msgType {
			return o.msgs[i].Payload, true
		}
	}
	return nil, false
}

type sessionFixture struct {
	broker       *changefeed.MemoryBroker
	orders       *repositories.MemoryOrderRepository
	settingsRepo *repositories.MemoryAlertSettingsRepository
	settings     AlertSettingsServiceInterface
	clock        *scheduler.Fake
	registry     *SessionRegistry
	deps         SessionDeps
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	broker := changefeed.NewMemoryBroker()
	f := &sessionFixture{
		broker:       broker,
		orders:       repositories.NewMemoryOrderRepository(broker),
		settingsRepo: repositories.NewMemoryAlertSettingsRepository(broker),
		clock:        scheduler.NewFake(testStart),
	}
	sounds := NewSoundCatalog(builtinSounds)
	f.settings = NewAlertSettingsService(f.settingsRepo, sounds, zap.NewNop())
	f.deps = SessionDeps{
		Orders:    f.orders,
		Settings:  f.settings,
		Sounds:    sounds,
		Transport: broker,
		Clock:     f.clock,
		Feed:      FeedOptions{MaxRetries: 50, RetryDelay: 5 * time.Millisecond},
		Alerts:    AlertEngineOptions{VisualWindow: time.Second},
		Logger:    zap.NewNop(),
	}
	f.registry = NewSessionRegistry(f.deps, zap.NewNop())
	t.Cleanup(f.registry.CloseAll)
	return f
}

// open ждёт подключения обеих лент и первой сверки, затем разблокирует звук.
func (f *sessionFixture) open(t *testing.T, opts SessionOptions) (*PanelSession, *recordingOutbound) {
	t.Helper()
	out := &recordingOutbound{}
	s, err := f.registry.Open(opts, out)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return out.count(MessageOrders) >= 1 && s.ConnectionStatus() == StateConnected
	}, eventually, time.Millisecond)
	s.InitializeAudio()
	return s, out
}

func (f *sessionFixture) seed(status constants.OrderStatus) entities.Order {
	o := entities.Order{
		ID:            uuid.NewString(),
		CustomerID:    "cust-1",
		Status:        status,
		PaymentMethod: constants.PaymentCard,
		Items:         []entities.OrderItem{{ProductID: "p-1", Quantity: 1, UnitPrice: 10}},
		Subtotal:      10,
		Total:         10,
	}
	f.orders.Put(o)
	return o
}

func TestPanelSession_CheckoutAlertsKitchenAndAdmin(t *testing.T) {
	f := newSessionFixture(t)
	kitchen, kOut := f.open(t, SessionOptions{Panel: constants.PanelKitchen})
	admin, aOut := f.open(t, SessionOptions{Panel: constants.PanelAdmin})

	api := NewOrderService(f.orders, NewChangeFeedSubscriber(f.broker, f.deps.Feed, zap.NewNop()), zap.NewNop())
	defer api.Close()
	created, err := api.Checkout(context.Background(), dto.CreateOrderDTO{
		CustomerID:    "cust-1",
		Items:         []dto.OrderItemDTO{{ProductID: "p-1", Quantity: 2, UnitPrice: 5}},
		PaymentMethod: constants.PaymentCard,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1001), created.Number)
	assert.Equal(t, constants.StatusPending, created.Status)

	require.Eventually(t, func() bool { return kOut.count(MessagePlaySound) == 1 }, eventually, time.Millisecond,
		"кухня слышит новый заказ")
	require.Eventually(t, func() bool { return aOut.count(MessagePlaySound) == 1 }, eventually, time.Millisecond,
		"админ слышит новый заказ")
	assert.True(t, kitchen.AlertFlags().KitchenRepeating)
	assert.Equal(t, created.ID, kitchen.AlertFlags().RepeatOrderID)
	assert.Equal(t, 1, kitchen.GetPendingOrdersCount())

	// Scenario A: кухня берёт заказ, админ видит preparing после своей сверки.
	res, err := kitchen.UpdateOrderStatus(context.Background(), created.ID, constants.StatusPreparing)
	require.NoError(t, err)
	assert.False(t, res.NoOp)
	assert.Equal(t, constants.StatusPreparing, res.Order.Status)
	assert.False(t, kitchen.AlertFlags().KitchenRepeating, "заказ ушёл из очереди кухни")

	require.Eventually(t, func() bool {
		list := admin.GetOrdersByStatus(constants.StatusPreparing)
		return len(list) == 1 && list[0].ID == created.ID
	}, eventually, time.Millisecond)
	assert.Equal(t, 1, aOut.count(MessagePlaySound), "preparing не озвучивается")
	assert.Equal(t, 0, admin.GetPendingOrdersCount())
}

func TestPanelSession_ScenarioB_SecondCourierIsNoOp(t *testing.T) {
	f := newSessionFixture(t)
	o := f.seed(constants.StatusReady)
	first, _ := f.open(t, SessionOptions{Panel: constants.PanelCourier, CourierID: "courier-1"})
	second, _ := f.open(t, SessionOptions{Panel: constants.PanelCourier, CourierID: "courier-2"})

	res, err := first.AssignCourier(context.Background(), o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, constants.StatusOutForDelivery, res.Order.Status)
	assert.Equal(t, "courier-1", res.Order.CourierID.String)

	again, err := second.UpdateOrderStatus(context.Background(), o.ID, constants.StatusOutForDelivery)
	require.NoError(t, err)
	assert.True(t, again.NoOp)

	stored, err := f.orders.FindOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "courier-1", stored.CourierID.String, "курьер не переназначен")
}

func TestPanelSession_RejectedTransitionKeepsOrder(t *testing.T) {
	f := newSessionFixture(t)
	o := f.seed(constants.StatusPending)
	courier, _ := f.open(t, SessionOptions{Panel: constants.PanelCourier})
	kitchen, _ := f.open(t, SessionOptions{Panel: constants.PanelKitchen})

	_, err := courier.UpdateOrderStatus(context.Background(), o.ID, constants.StatusDelivered)
	var nf *apperrors.NotFoundError
	assert.ErrorAs(t, err, &nf, "курьер не видит заказы в ожидании")

	_, err = kitchen.UpdateOrderStatus(context.Background(), o.ID, constants.StatusDelivered)
	assert.True(t, apperrors.IsValidation(err))
	code, _ := utils.StatusFor(err)
	assert.Equal(t, 400, code)

	stored, err := f.orders.FindOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending, stored.Status)
}

func TestPanelSession_PersistenceFailureRollsBack(t *testing.T) {
	f := newSessionFixture(t)
	o := f.seed(constants.StatusPending)
	kitchen, _ := f.open(t, SessionOptions{Panel: constants.PanelKitchen})

	f.orders.FailNext(assert.AnError)
	_, err := kitchen.UpdateOrderStatus(context.Background(), o.ID, constants.StatusPreparing)
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))

	local := kitchen.GetOrdersByStatus(constants.StatusPending)
	require.Len(t, local, 1)
	assert.Equal(t, o.ID, local[0].ID)
}

func TestPanelSession_SettingsChangePropagates(t *testing.T) {
	f := newSessionFixture(t)
	kitchen, _ := f.open(t, SessionOptions{Panel: constants.PanelKitchen})

	off := false
	_, err := f.settings.Update(context.Background(), constants.PanelKitchen, entities.AlertSettingsPatch{Enabled: &off})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s, ok := kitchen.engine.Settings(constants.PanelKitchen)
		return ok && !s.Enabled
	}, eventually, time.Millisecond)
	assert.False(t, kitchen.PlaySoundForEvent(EventOrderToKitchen, "o-1", constants.PanelKitchen))
}

func TestPanelSession_ConnectionStatusIsPushed(t *testing.T) {
	f := newSessionFixture(t)
	admin, out := f.open(t, SessionOptions{Panel: constants.PanelAdmin})

	f.broker.SetDown(true)
	require.Eventually(t, func() bool { return admin.ConnectionStatus() == StateReconnecting }, eventually, time.Millisecond)
	f.broker.SetDown(false)
	require.Eventually(t, func() bool { return admin.ConnectionStatus() == StateConnected }, eventually, time.Millisecond)

	require.Eventually(t, func() bool {
		payload, ok := out.last(MessageConnectionStatus)
		return ok && payload.(dto.FeedStatusDTO).Overall == string(StateConnected)
	}, eventually, time.Millisecond)
	payload, _ := out.last(MessageConnectionStatus)
	assert.Contains(t, payload.(dto.FeedStatusDTO).Feeds, constants.EntityOrders)
}

func TestPanelSession_AlertSurface(t *testing.T) {
	f := newSessionFixture(t)
	kitchen, out := f.open(t, SessionOptions{Panel: constants.PanelKitchen})

	assert.False(t, kitchen.PlaySoundForEvent(EventOrderReady, "o-1", constants.PanelKitchen), "order_ready кухне не адресован")
	assert.True(t, kitchen.PlaySoundForEvent(EventOrderToKitchen, "o-1", constants.PanelKitchen))
	payload, ok := out.last(MessagePlaySound)
	require.True(t, ok)
	assert.Equal(t, DefaultSoundID, payload.(dto.PlaySoundDTO).SoundID)

	kitchen.StartKitchenRepeat("o-1")
	assert.True(t, kitchen.AlertFlags().KitchenRepeating)
	kitchen.SetVisible(false)
	f.clock.Advance(30 * time.Second)
	assert.Equal(t, 1, out.count(MessagePlaySound), "скрытая вкладка не повторяет")

	kitchen.StopKitchenRepeat()
	kitchen.MarkOrderAsAlerted("o-1", constants.PanelKitchen)
	assert.False(t, kitchen.AlertFlags().KitchenRepeating)

	require.NoError(t, kitchen.PreviewSound("chime", 0.5))
	assert.ErrorIs(t, kitchen.PreviewSound("nope", 0.5), apperrors.ErrUnknownSound)
}

func TestSessionRegistry_SystemAlertReachesAllAlertPanels(t *testing.T) {
	f := newSessionFixture(t)
	_, kOut := f.open(t, SessionOptions{Panel: constants.PanelKitchen})
	_, cOut := f.open(t, SessionOptions{Panel: constants.PanelCourier})
	_, aOut := f.open(t, SessionOptions{Panel: constants.PanelAdmin})
	_, sOut := f.open(t, SessionOptions{Panel: constants.PanelStorefront, CustomerID: "cust-1"})

	assert.Equal(t, 3, f.registry.SystemAlert("", "Проверка связи"))
	for _, out := range []*recordingOutbound{kOut, cOut, aOut} {
		assert.Equal(t, 1, out.count(MessagePlaySound))
		assert.Equal(t, 1, out.count(MessageToast))
	}
	assert.Equal(t, 0, sOut.count(MessagePlaySound))
	assert.Equal(t, 4, sumCounts(f.registry.Count()))
}

func sumCounts(m map[constants.Panel]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

func TestNewPanelSession_Validation(t *testing.T) {
	f := newSessionFixture(t)
	_, err := NewPanelSession(f.deps, SessionOptions{Panel: "bar"}, nil)
	assert.Error(t, err)
	_, err = NewPanelSession(f.deps, SessionOptions{Panel: constants.PanelStorefront}, nil)
	assert.Error(t, err, "витрина без клиента")
}

func TestSessionRegistry_CloseStopsFeeds(t *testing.T) {
	f := newSessionFixture(t)
	s, _ := f.open(t, SessionOptions{Panel: constants.PanelKitchen})
	require.Equal(t, 1, f.broker.Listeners(constants.EntityOrders))

	f.registry.Close(s.ID())
	require.Eventually(t, func() bool { return f.broker.Listeners(constants.EntityOrders) == 0 }, eventually, time.Millisecond)
	_, ok := f.registry.Get(s.ID())
	assert.False(t, ok)
	assert.False(t, s.PlaySoundForEvent(EventOrderToKitchen, "o-1", constants.PanelKitchen), "закрытая сессия молчит")
}
