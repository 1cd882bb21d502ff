package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aarondl/null/v8"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

// MemoryOrderRepository - хранилище заказов в памяти с теми же правилами compare-and-set, что и Postgres.
type MemoryOrderRepository struct {
	mu        sync.Mutex
	orders    map[string]entities.Order
	audit     []AuditEntry
	number    int64
	publisher changefeed.Publisher
	failNext  error
	now       func() time.Time
}

// AuditEntry - запись журнала удалений.
type AuditEntry struct {
	OrderID string
	Action  string
	Actor   constants.Role
	Order   entities.Order
}

func NewMemoryOrderRepository(publisher changefeed.Publisher) *MemoryOrderRepository {
	if publisher == nil {
		publisher = changefeed.NopPublisher{}
	}
	return &MemoryOrderRepository{
		orders:    make(map[string]entities.Order),
		number:    1000,
		publisher: publisher,
		now:       time.Now,
	}
}

// FailNext заставляет следующую запись вернуть err (для проверки отката).
func (r *MemoryOrderRepository) FailNext(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

// Audit возвращает копию журнала удалений.
func (r *MemoryOrderRepository) Audit() []AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEntry(nil), r.audit...)
}

// Put кладёт заказ как есть, минуя правила. Нужен для подготовки данных.
func (r *MemoryOrderRepository) Put(order entities.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.Number == 0 {
		r.number++
		order.Number = r.number
	}
	r.orders[order.ID] = order.Clone()
}

func (r *MemoryOrderRepository) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func (r *MemoryOrderRepository) CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	r.mu.Lock()
	if err := r.takeFailure(); err != nil {
		r.mu.Unlock()
		return entities.Order{}, err
	}
	if _, exists := r.orders[order.ID]; exists {
		r.mu.Unlock()
		return entities.Order{}, apperrors.NewConflictError(order.ID, order.Status.String(), "заказ с таким id уже есть")
	}
	r.number++
	now := r.now()
	order.Number = r.number
	order.CreatedAt, order.UpdatedAt = now, now
	r.orders[order.ID] = order.Clone()
	r.mu.Unlock()

	_ = r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityOrders, Op: changefeed.OpInsert, ID: order.ID})
	return order.Clone(), nil
}

func (r *MemoryOrderRepository) FindOrder(ctx context.Context, id string) (entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return entities.Order{}, apperrors.NewNotFoundError("заказ", id)
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if filter.Matches(o) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	if filter.Limit > 0 && uint64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryOrderRepository) UpdateOrderStatus(ctx context.Context, id string, from, to constants.OrderStatus) (entities.Order, bool, error) {
	r.mu.Lock()
	if err := r.takeFailure(); err != nil {
		r.mu.Unlock()
		return entities.Order{}, false, err
	}
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return entities.Order{}, false, apperrors.NewNotFoundError("заказ", id)
	}
	if o.Status != from {
		r.mu.Unlock()
		if o.Status == to {
			return o.Clone(), false, nil
		}
		return entities.Order{}, false, apperrors.NewConflictError(id, o.Status.String(), "ожидался статус "+from.String())
	}
	o.Status = to
	o.UpdatedAt = r.now()
	r.orders[id] = o
	r.mu.Unlock()

	_ = r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityOrders, Op: changefeed.OpUpdate, ID: id})
	return o.Clone(), true, nil
}

func (r *MemoryOrderRepository) AssignCourier(ctx context.Context, id string, from constants.OrderStatus, courierID string) (entities.Order, bool, error) {
	r.mu.Lock()
	if err := r.takeFailure(); err != nil {
		r.mu.Unlock()
		return entities.Order{}, false, err
	}
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return entities.Order{}, false, apperrors.NewNotFoundError("заказ", id)
	}
	sameCourier := o.CourierID.Valid && o.CourierID.String == courierID
	if o.Status != from || (o.CourierID.Valid && !sameCourier) {
		r.mu.Unlock()
		if o.Status == constants.StatusOutForDelivery && sameCourier {
			return o.Clone(), false, nil
		}
		return entities.Order{}, false, apperrors.NewConflictError(id, o.Status.String(), "заказ уже передан другому курьеру или сменил статус")
	}
	o.Status = constants.StatusOutForDelivery
	o.CourierID = null.StringFrom(courierID)
	o.UpdatedAt = r.now()
	r.orders[id] = o
	r.mu.Unlock()

	_ = r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityOrders, Op: changefeed.OpUpdate, ID: id})
	return o.Clone(), true, nil
}

func (r *MemoryOrderRepository) DeleteOrder(ctx context.Context, id string, actor constants.Role) error {
	r.mu.Lock()
	if err := r.takeFailure(); err != nil {
		r.mu.Unlock()
		return err
	}
	o, ok := r.orders[id]
	if !ok {
		r.mu.Unlock()
		return apperrors.NewNotFoundError("заказ", id)
	}
	if constants.IsFinalStatus(o.Status) {
		r.mu.Unlock()
		return apperrors.NewConflictError(id, o.Status.String(), "завершённый заказ удалить нельзя")
	}
	delete(r.orders, id)
	r.audit = append(r.audit, AuditEntry{OrderID: id, Action: "delete", Actor: actor, Order: o})
	r.mu.Unlock()

	_ = r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityOrders, Op: changefeed.OpDelete, ID: id})
	return nil
}
