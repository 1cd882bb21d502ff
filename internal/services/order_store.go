package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/events"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
	"order-dispatch/pkg/eventbus"
)

// MutationResult - итог мутации. NoOp: заказ уже был в целевом состоянии, ничего не записано.
type MutationResult struct {
	Order entities.Order
	NoOp  bool
}

type OrderStoreInterface interface {
	Create(ctx context.Context, order entities.Order, role constants.Role) (entities.Order, error)
	SetStatus(ctx context.Context, id string, target constants.OrderStatus, role constants.Role) (MutationResult, error)
	AssignCourier(ctx context.Context, id, courierID string, role constants.Role) (MutationResult, error)
	Delete(ctx context.Context, id string, role constants.Role) error
	Get(id string) (entities.Order, bool)
	Orders() []entities.Order
	ListByStatus(status constants.OrderStatus) []entities.Order
	PendingCount() int
	Reconcile(ctx context.Context, snapshot []entities.Order) events.OrderDiff
}

// OrderStore - локальная копия очереди заказов одной сессии.
// Каждая мутация проходит автомат статусов, применяется локально и только потом пишется в хранилище.
type OrderStore struct {
	mu     sync.RWMutex
	orders []entities.Order
	loaded bool

	repo   repositories.OrderRepositoryInterface
	sm     StateMachineInterface
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewOrderStore(
	repo repositories.OrderRepositoryInterface,
	sm StateMachineInterface,
	bus *eventbus.Bus,
	logger *zap.Logger,
) *OrderStore {
	return &OrderStore{
		repo:   repo,
		sm:     sm,
		bus:    bus,
		logger: logger,
	}
}

// orderSnapshot - состояние одного заказа до оптимистичного применения.
type orderSnapshot struct {
	before  entities.Order
	existed bool
	removed bool // заказ убран локально (Delete), откат возвращает его на место
	index   int
	applied entities.Order
}

var errNoChange = errors.New("заказ уже в целевом состоянии")

func (s *OrderStore) indexLocked(id string) int {
	for i := range s.orders {
		if s.orders[i].ID == id {
			return i
		}
	}
	return -1
}

// restoreLocked откатывает только этот заказ и только если его не успела перезаписать сверка.
func (s *OrderStore) restoreLocked(snap orderSnapshot) {
	i := s.indexLocked(snap.applied.ID)
	if i >= 0 && !sameVersion(s.orders[i], snap.applied) {
		return
	}
	switch {
	case snap.existed && i >= 0:
		s.orders[i] = snap.before
	case snap.removed && i < 0:
		at := snap.index
		if at > len(s.orders) {
			at = len(s.orders)
		}
		s.orders = append(s.orders, entities.Order{})
		copy(s.orders[at+1:], s.orders[at:])
		s.orders[at] = snap.before
	case !snap.existed && i >= 0:
		s.orders = append(s.orders[:i], s.orders[i+1:]...)
	}
}

func (s *OrderStore) commitLocked(o entities.Order) {
	if i := s.indexLocked(o.ID); i >= 0 {
		s.orders[i] = o.Clone()
	}
}

func sameVersion(a, b entities.Order) bool {
	return a.Status == b.Status && a.CourierID == b.CourierID && a.UpdatedAt.Equal(b.UpdatedAt)
}

// -----------------------------------------------------------
// MUTATIONS
// -----------------------------------------------------------

func (s *OrderStore) Create(ctx context.Context, order entities.Order, role constants.Role) (entities.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = InitialStatus(order.PaymentMethod)
	}

	return RunOptimistic(ctx, Optimistic[orderSnapshot, entities.Order]{
		Op: "create_order",
		Apply: func() (orderSnapshot, error) {
			if err := s.sm.CanCreate(order, role); err != nil {
				return orderSnapshot{}, err
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.indexLocked(order.ID) >= 0 {
				return orderSnapshot{}, apperrors.NewConflictError(order.ID, order.Status.String(), "заказ с таким id уже есть")
			}
			s.orders = append(s.orders, order.Clone())
			return orderSnapshot{applied: order}, nil
		},
		Persist: func(ctx context.Context) (entities.Order, error) {
			return s.repo.CreateOrder(ctx, order)
		},
		Rollback: s.rollback("create_order"),
		Commit: func(created entities.Order) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.commitLocked(created)
		},
	})
}

func (s *OrderStore) SetStatus(ctx context.Context, id string, target constants.OrderStatus, role constants.Role) (MutationResult, error) {
	var current entities.Order
	res, err := RunOptimistic(ctx, Optimistic[orderSnapshot, MutationResult]{
		Op: "update_status",
		Apply: func() (orderSnapshot, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(id)
			if i < 0 {
				return orderSnapshot{}, apperrors.NewNotFoundError("заказ", id)
			}
			current = s.orders[i].Clone()
			d := s.sm.Transition(current, target, role)
			if d.Rejected() {
				s.logger.Info("переход статуса отклонён",
					zap.String("order_id", id), zap.String("from", current.Status.String()),
					zap.String("to", target.String()), zap.String("role", role.String()), zap.String("reason", d.Reason))
				return orderSnapshot{}, d.Err()
			}
			if d.NoOp() {
				return orderSnapshot{}, errNoChange
			}
			next := current.Clone()
			next.Status = d.Status
			next.UpdatedAt = time.Now()
			s.orders[i] = next
			return orderSnapshot{before: current, existed: true, index: i, applied: next}, nil
		},
		Persist: func(ctx context.Context) (MutationResult, error) {
			o, applied, err := s.repo.UpdateOrderStatus(ctx, id, current.Status, target)
			return MutationResult{Order: o, NoOp: !applied}, err
		},
		Rollback: s.rollback("update_status"),
		Commit: func(r MutationResult) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.commitLocked(r.Order)
		},
	})
	if errors.Is(err, errNoChange) {
		return MutationResult{Order: current, NoOp: true}, nil
	}
	if current.ID != "" && errors.Is(err, apperrors.ErrNotFound) {
		s.forget(ctx, id)
	}
	return res, err
}

// AssignCourier назначает курьера и переводит заказ в out_for_delivery.
// Повторное назначение того же курьера - NoOp, другого на уже отправленный заказ - конфликт.
func (s *OrderStore) AssignCourier(ctx context.Context, id, courierID string, role constants.Role) (MutationResult, error) {
	if courierID == "" {
		return MutationResult{}, apperrors.NewValidationError(id, "", constants.StatusOutForDelivery.String(), role.String(), "не указан курьер")
	}

	var current entities.Order
	res, err := RunOptimistic(ctx, Optimistic[orderSnapshot, MutationResult]{
		Op: "assign_courier",
		Apply: func() (orderSnapshot, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(id)
			if i < 0 {
				return orderSnapshot{}, apperrors.NewNotFoundError("заказ", id)
			}
			current = s.orders[i].Clone()

			if current.CourierID.Valid {
				if current.CourierID.String == courierID && current.Status == constants.StatusOutForDelivery {
					return orderSnapshot{}, errNoChange
				}
				if current.CourierID.String != courierID {
					return orderSnapshot{}, apperrors.NewConflictError(id, current.Status.String(), "заказ уже закреплён за курьером "+current.CourierID.String)
				}
			}

			// Курьер-less заказ уже в пути: админ дописывает курьера без смены статуса.
			if current.Status != constants.StatusOutForDelivery || role != constants.RoleAdmin {
				d := s.sm.Transition(current, constants.StatusOutForDelivery, role)
				if d.Rejected() {
					return orderSnapshot{}, d.Err()
				}
			}

			next := current.Clone()
			next.Status = constants.StatusOutForDelivery
			next.CourierID = null.StringFrom(courierID)
			next.UpdatedAt = time.Now()
			s.orders[i] = next
			return orderSnapshot{before: current, existed: true, index: i, applied: next}, nil
		},
		Persist: func(ctx context.Context) (MutationResult, error) {
			o, applied, err := s.repo.AssignCourier(ctx, id, current.Status, courierID)
			return MutationResult{Order: o, NoOp: !applied}, err
		},
		Rollback: s.rollback("assign_courier"),
		Commit: func(r MutationResult) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.commitLocked(r.Order)
		},
	})
	if errors.Is(err, errNoChange) {
		return MutationResult{Order: current, NoOp: true}, nil
	}
	if current.ID != "" && errors.Is(err, apperrors.ErrNotFound) {
		s.forget(ctx, id)
	}
	return res, err
}

// Delete - жёсткое удаление незавершённого заказа администратором.
func (s *OrderStore) Delete(ctx context.Context, id string, role constants.Role) error {
	var current entities.Order
	_, err := RunOptimistic(ctx, Optimistic[orderSnapshot, struct{}]{
		Op: "delete_order",
		Apply: func() (orderSnapshot, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			i := s.indexLocked(id)
			if i < 0 {
				return orderSnapshot{}, apperrors.NewNotFoundError("заказ", id)
			}
			if err := s.sm.CanDelete(s.orders[i], role); err != nil {
				return orderSnapshot{}, err
			}
			current = s.orders[i].Clone()
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return orderSnapshot{before: current, existed: true, removed: true, index: i, applied: current}, nil
		},
		Persist: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.repo.DeleteOrder(ctx, id, role)
		},
		Rollback: s.rollback("delete_order"),
	})
	if current.ID != "" && errors.Is(err, apperrors.ErrNotFound) {
		s.forget(ctx, id)
	}
	return err
}

func (s *OrderStore) rollback(op string) func(orderSnapshot) {
	return func(snap orderSnapshot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.restoreLocked(snap)
		s.logger.Warn("локальное изменение откачено", zap.String("op", op), zap.String("order_id", snap.applied.ID))
	}
}

// forget убирает заказ, которого уже нет в хранилище, и публикует дифф с удалением,
// чтобы подписчики не ждали следующей сверки.
func (s *OrderStore) forget(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	gone := s.orders[i].Clone()
	s.orders = append(s.orders[:i], s.orders[i+1:]...)
	orders := make([]entities.Order, len(s.orders))
	for j, o := range s.orders {
		orders[j] = o.Clone()
	}
	s.mu.Unlock()

	s.logger.Info("заказ пропал из хранилища, убран локально", zap.String("order_id", id))
	if s.bus != nil {
		s.bus.Publish(ctx, events.OrdersReconciledEvent{
			Diff:   events.OrderDiff{Removed: []entities.Order{gone}},
			Orders: orders,
		})
	}
}

// -----------------------------------------------------------
// READS
// -----------------------------------------------------------

func (s *OrderStore) Get(id string) (entities.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.orders[i].Clone(), true
	}
	return entities.Order{}, false
}

func (s *OrderStore) Orders() []entities.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

func (s *OrderStore) ListByStatus(status constants.OrderStatus) []entities.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Order, 0)
	for _, o := range s.orders {
		if o.Status == status {
			out = append(out, o.Clone())
		}
	}
	return out
}

// PendingCount - сколько заказов ждут реакции кухни.
func (s *OrderStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		if o.Status == constants.StatusPending {
			n++
		}
	}
	return n
}

// -----------------------------------------------------------
// RECONCILE
// -----------------------------------------------------------

// Reconcile заменяет коллекцию целиком и публикует дифф. Первая сверка сессии - базовая.
func (s *OrderStore) Reconcile(ctx context.Context, snapshot []entities.Order) events.OrderDiff {
	next := make([]entities.Order, len(snapshot))
	for i, o := range snapshot {
		next[i] = o.Clone()
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Number < next[j].Number })

	s.mu.Lock()
	diff := diffOrders(s.orders, next)
	diff.Initial = !s.loaded
	s.orders = next
	s.loaded = true
	orders := make([]entities.Order, len(next))
	for i, o := range next {
		orders[i] = o.Clone()
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(ctx, events.OrdersReconciledEvent{Diff: diff, Orders: orders})
	}
	return diff
}

func diffOrders(prev, next []entities.Order) events.OrderDiff {
	var diff events.OrderDiff
	old := make(map[string]entities.Order, len(prev))
	for _, o := range prev {
		old[o.ID] = o
	}
	seen := make(map[string]bool, len(next))

	for _, o := range next {
		seen[o.ID] = true
		was, ok := old[o.ID]
		if !ok {
			diff.Added = append(diff.Added, o.Clone())
			continue
		}
		if was.Status != o.Status {
			diff.StatusChanges = append(diff.StatusChanges, events.StatusChange{Order: o.Clone(), From: was.Status, To: o.Status})
		}
		if was.CourierID != o.CourierID {
			diff.CourierChanges = append(diff.CourierChanges, events.CourierChange{Order: o.Clone(), From: was.CourierID.String, To: o.CourierID.String})
		}
	}
	for _, o := range prev {
		if !seen[o.ID] {
			diff.Removed = append(diff.Removed, o.Clone())
		}
	}
	return diff
}
