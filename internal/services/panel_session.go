package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/entities"
	"order-dispatch/internal/events"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/eventbus"
	"order-dispatch/pkg/scheduler"
)

// Типы сообщений панели.
const (
	MessageOrders           = "orders"
	MessagePlaySound        = "play_sound"
	MessageToast            = "toast"
	MessageAlertState       = "alert_state"
	MessageConnectionStatus = "connection_status"
	MessageCommandResult    = "command_result"
)

// Outbound - канал к интерфейсу панели. Send не должен блокироваться.
type Outbound interface {
	Send(msgType string, payload interface{}) error
}

// SessionDeps - общие для всех сессий зависимости процесса.
type SessionDeps struct {
	Orders    repositories.OrderRepositoryInterface
	Settings  AlertSettingsServiceInterface
	Sounds    SoundCatalogInterface
	Transport changefeed.Transport
	Clock     scheduler.Scheduler
	Feed      FeedOptions
	Alerts    AlertEngineOptions
	Logger    *zap.Logger
}

// SessionOptions - кто открыл панель.
type SessionOptions struct {
	Panel      constants.Panel
	CustomerID string
	CourierID  string
}

// PanelSession - одна открытая панель: своя копия очереди, движок звука, маршрутизатор и подписки.
type PanelSession struct {
	id      string
	panel   constants.Panel
	opts    SessionOptions
	visible atomic.Bool

	store    *OrderStore
	engine   *AlertEngine
	router   *AlertRouter
	feed     ChangeFeedSubscriberInterface
	bus      *eventbus.Bus
	repo     repositories.OrderRepositoryInterface
	settings AlertSettingsServiceInterface
	out      Outbound
	logger   *zap.Logger

	statusMu  sync.Mutex
	closeOnce sync.Once
}

func NewPanelSession(deps SessionDeps, opts SessionOptions, out Outbound) (*PanelSession, error) {
	if !opts.Panel.Valid() {
		return nil, apperrors.NewInvalidInputError("неизвестная панель %q", opts.Panel)
	}
	if opts.Panel == constants.PanelStorefront && opts.CustomerID == "" {
		return nil, apperrors.NewInvalidInputError("для витрины нужен customer_id")
	}
	clock := deps.Clock
	if clock == nil {
		clock = scheduler.New()
	}

	id := uuid.NewString()
	logger := deps.Logger.With(zap.String("session_id", id), zap.String("panel", opts.Panel.String()))
	s := &PanelSession{
		id:       id,
		panel:    opts.Panel,
		opts:     opts,
		repo:     deps.Orders,
		settings: deps.Settings,
		out:      out,
		logger:   logger,
	}
	s.visible.Store(true)

	s.bus = eventbus.New(logger)
	s.store = NewOrderStore(deps.Orders, NewStateMachine(), s.bus, logger)
	s.engine = NewAlertEngine(clock, s, s, s, deps.Sounds, deps.Alerts, logger)
	var hosted []constants.Panel
	if opts.Panel.HasAlerts() {
		hosted = []constants.Panel{opts.Panel}
	}
	s.router = NewAlertRouter(s.engine, hosted, logger)
	s.feed = NewChangeFeedSubscriber(deps.Transport, deps.Feed, logger)

	s.bus.Subscribe(events.OrdersReconciledEventName, s.router.OnOrdersReconciled)
	s.bus.Subscribe(events.OrdersReconciledEventName, s.onOrdersReconciled)
	s.bus.Subscribe(events.AlertSettingsLoadedEventName, s.onSettingsLoaded)
	s.engine.OnStateChange(func(flags AlertFlags) {
		s.send(MessageAlertState, flags)
	})
	s.feed.Monitor().OnChange(func(entity string, state, overall ConnectionState) {
		// Снимок и отправка под одним замком: последнее сообщение всегда отражает последнее состояние.
		s.statusMu.Lock()
		defer s.statusMu.Unlock()
		s.send(MessageConnectionStatus, s.feedStatus())
	})
	return s, nil
}

// Start подписывает сессию на настройки и заказы. Каждое подключение ленты начинается с полного чтения.
func (s *PanelSession) Start() error {
	if s.panel.HasAlerts() {
		if _, err := s.feed.Subscribe(constants.EntityAlertSettings, s.reloadSettings); err != nil {
			return err
		}
	}
	if _, err := s.feed.Subscribe(constants.EntityOrders, s.refetchOrders); err != nil {
		return err
	}
	s.logger.Info("сессия панели запущена")
	return nil
}

func (s *PanelSession) ID() string { return s.id }

func (s *PanelSession) Panel() constants.Panel { return s.panel }

func (s *PanelSession) Close() {
	s.closeOnce.Do(func() {
		s.feed.Close()
		s.engine.Close()
		s.logger.Info("сессия панели закрыта")
	})
}

// Filter - какие заказы видит панель.
func (s *PanelSession) Filter() entities.OrderFilter {
	return PanelFilter(s.opts)
}

func PanelFilter(opts SessionOptions) entities.OrderFilter {
	switch opts.Panel {
	case constants.PanelKitchen:
		return entities.OrderFilter{Statuses: []constants.OrderStatus{
			constants.StatusPending, constants.StatusConfirmed, constants.StatusPreparing, constants.StatusReady,
		}}
	case constants.PanelCourier:
		return entities.OrderFilter{Statuses: []constants.OrderStatus{
			constants.StatusReady, constants.StatusOutForDelivery,
		}}
	case constants.PanelStorefront:
		return entities.OrderFilter{CustomerID: opts.CustomerID}
	}
	return entities.OrderFilter{}
}

func (s *PanelSession) refetchOrders(ctx context.Context) error {
	orders, err := s.repo.ListOrders(ctx, s.Filter())
	if err != nil {
		return err
	}
	s.store.Reconcile(ctx, orders)
	return nil
}

func (s *PanelSession) reloadSettings(ctx context.Context) error {
	settings, err := s.settings.List(ctx)
	if err != nil {
		return err
	}
	s.bus.Publish(ctx, events.AlertSettingsLoadedEvent{Settings: settings})
	return nil
}

func (s *PanelSession) onOrdersReconciled(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.OrdersReconciledEvent)
	if !ok {
		return nil
	}
	s.send(MessageOrders, dto.OrdersSnapshotDTO{
		Orders:       dto.NewOrderListResponseDTO(e.Orders).List,
		PendingCount: countPending(e.Orders),
	})
	return nil
}

func (s *PanelSession) onSettingsLoaded(ctx context.Context, event eventbus.Event) error {
	if e, ok := event.(events.AlertSettingsLoadedEvent); ok {
		s.engine.UpdateSettings(e.Settings)
	}
	return nil
}

func countPending(orders []entities.Order) int {
	n := 0
	for _, o := range orders {
		if o.Status == constants.StatusPending {
			n++
		}
	}
	return n
}

func (s *PanelSession) send(msgType string, payload interface{}) {
	if s.out == nil {
		return
	}
	if err := s.out.Send(msgType, payload); err != nil {
		s.logger.Debug("сообщение панели не отправлено", zap.String("type", msgType), zap.Error(err))
	}
}

// -----------------------------------------------------------
// ORDERS
// -----------------------------------------------------------

func (s *PanelSession) Orders() []entities.Order { return s.store.Orders() }

func (s *PanelSession) AddOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	if s.panel == constants.PanelStorefront && order.CustomerID == "" {
		order.CustomerID = s.opts.CustomerID
	}
	return s.store.Create(ctx, order, s.panel.Role())
}

func (s *PanelSession) UpdateOrderStatus(ctx context.Context, id string, status constants.OrderStatus) (MutationResult, error) {
	res, err := s.store.SetStatus(ctx, id, status, s.panel.Role())
	if err == nil {
		s.afterOwnMutation(res.Order)
	}
	return res, err
}

// AssignCourier: пустой courierID на панели курьера означает «себя».
func (s *PanelSession) AssignCourier(ctx context.Context, id, courierID string) (MutationResult, error) {
	if courierID == "" {
		courierID = s.opts.CourierID
	}
	res, err := s.store.AssignCourier(ctx, id, courierID, s.panel.Role())
	if err == nil {
		s.afterOwnMutation(res.Order)
	}
	return res, err
}

func (s *PanelSession) DeleteOrder(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id, s.panel.Role()); err != nil {
		return err
	}
	s.engine.MarkAlerted(id)
	return nil
}

// afterOwnMutation: своя мутация не попадёт в дифф следующей сверки, поэтому
// уход заказа из очереди кухни отмечается сразу.
func (s *PanelSession) afterOwnMutation(o entities.Order) {
	if o.ID == "" || isKitchenQueued(o.Status) {
		return
	}
	s.engine.MarkAlerted(o.ID, constants.PanelKitchen)
}

func (s *PanelSession) GetOrdersByStatus(status constants.OrderStatus) []entities.Order {
	return s.store.ListByStatus(status)
}

func (s *PanelSession) GetPendingOrdersCount() int { return s.store.PendingCount() }

func (s *PanelSession) ConnectionStatus() ConnectionState { return s.feed.Monitor().Overall() }

func (s *PanelSession) feedStatus() dto.FeedStatusDTO {
	return FeedStatus(s.feed.Monitor())
}

// FeedStatus переводит состояние монитора в ответ API.
func FeedStatus(m *ConnectionMonitor) dto.FeedStatusDTO {
	feeds := make(map[string]string)
	for entity, st := range m.ByEntity() {
		feeds[entity] = string(st)
	}
	return dto.FeedStatusDTO{Overall: string(m.Overall()), Feeds: feeds}
}

// -----------------------------------------------------------
// ALERTS
// -----------------------------------------------------------

func (s *PanelSession) PlaySoundForEvent(event AlertEvent, orderID string, panel constants.Panel) bool {
	return s.router.PlayForPanel(event, orderID, panel)
}

// SystemAlert - ручной сигнал администратора; текст, если есть, дублируется уведомлением.
func (s *PanelSession) SystemAlert(orderID, message string) bool {
	played := s.router.PlayForPanel(EventSystemAlert, orderID, s.panel)
	if message != "" && s.panel.HasAlerts() {
		s.Toast(s.panel, message)
	}
	return played
}

func (s *PanelSession) PreviewSound(soundID string, volume float64) error {
	if !s.panel.HasAlerts() {
		return apperrors.NewInvalidInputError("панель %q не воспроизводит звуки", s.panel)
	}
	return s.engine.PreviewSound(s.panel, soundID, volume)
}

func (s *PanelSession) InitializeAudio() { s.engine.InitializeAudio() }

func (s *PanelSession) MarkOrderAsAlerted(orderID string, panels ...constants.Panel) {
	s.engine.MarkAlerted(orderID, panels...)
}

func (s *PanelSession) StartKitchenRepeat(orderID string) { s.engine.StartKitchenRepeat(orderID) }

func (s *PanelSession) StopKitchenRepeat() { s.engine.StopKitchenRepeat() }

func (s *PanelSession) AlertFlags() AlertFlags { return s.engine.Flags() }

func (s *PanelSession) SetVisible(visible bool) { s.visible.Store(visible) }

// Play, Toast и Visible делают сокет панели её звуковым устройством.

func (s *PanelSession) Play(panel constants.Panel, sound Sound, volume float64) error {
	if s.out == nil {
		return apperrors.ErrAudioLocked
	}
	return s.out.Send(MessagePlaySound, dto.PlaySoundDTO{
		Panel:   panel.String(),
		SoundID: sound.ID,
		Name:    sound.Name,
		URL:     sound.URL,
		Volume:  volume,
	})
}

func (s *PanelSession) Toast(panel constants.Panel, message string) {
	s.send(MessageToast, dto.ToastDTO{Panel: panel.String(), Message: message})
}

func (s *PanelSession) Visible(panel constants.Panel) bool {
	return panel == s.panel && s.visible.Load()
}
