package services

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"order-dispatch/internal/dto"
	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

// OrderServiceInterface - операции над заказами для REST: оформление на витрине,
// смена статуса внешними системами (оплата) и чтения.
type OrderServiceInterface interface {
	Start() error
	Checkout(ctx context.Context, d dto.CreateOrderDTO) (entities.Order, error)
	UpdateStatus(ctx context.Context, id string, status constants.OrderStatus, role constants.Role) (MutationResult, error)
	List(status constants.OrderStatus) []entities.Order
	PendingCount() int
	Monitor() *ConnectionMonitor
	Close()
}

// OrderService - сессия без панели: своя копия очереди, подписанная на ленту изменений.
type OrderService struct {
	store  *OrderStore
	repo   repositories.OrderRepositoryInterface
	feed   ChangeFeedSubscriberInterface
	logger *zap.Logger
}

func NewOrderService(
	repo repositories.OrderRepositoryInterface,
	feed ChangeFeedSubscriberInterface,
	logger *zap.Logger,
) OrderServiceInterface {
	return &OrderService{
		store:  NewOrderStore(repo, NewStateMachine(), nil, logger),
		repo:   repo,
		feed:   feed,
		logger: logger,
	}
}

func (s *OrderService) Start() error {
	_, err := s.feed.Subscribe(constants.EntityOrders, s.refetch)
	return err
}

func (s *OrderService) refetch(ctx context.Context) error {
	orders, err := s.repo.ListOrders(ctx, entities.OrderFilter{})
	if err != nil {
		return err
	}
	s.store.Reconcile(ctx, orders)
	return nil
}

func (s *OrderService) Monitor() *ConnectionMonitor { return s.feed.Monitor() }

func (s *OrderService) Close() { s.feed.Close() }

// Checkout собирает заказ из корзины и создаёт его от имени витрины.
func (s *OrderService) Checkout(ctx context.Context, d dto.CreateOrderDTO) (entities.Order, error) {
	order, err := buildOrder(d)
	if err != nil {
		return entities.Order{}, err
	}
	created, err := s.store.Create(ctx, order, constants.RoleStorefront)
	if err != nil {
		return entities.Order{}, err
	}
	s.logger.Info("заказ оформлен",
		zap.String("order_id", created.ID),
		zap.Int64("number", created.Number),
		zap.String("status", created.Status.String()),
	)
	return created, nil
}

// UpdateStatus меняет статус. Если локальная копия ещё не видела заказ (колбэк оплаты
// пришёл раньше уведомления), копия перечитывается один раз.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status constants.OrderStatus, role constants.Role) (MutationResult, error) {
	if !status.Valid() {
		return MutationResult{}, apperrors.NewInvalidInputError("неизвестный статус %q", status)
	}
	if !role.Valid() {
		return MutationResult{}, apperrors.NewInvalidInputError("неизвестная роль %q", role)
	}

	res, err := s.store.SetStatus(ctx, id, status, role)
	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		if _, known := s.store.Get(id); !known {
			if rerr := s.refetch(ctx); rerr != nil {
				return MutationResult{}, apperrors.NewPersistenceError("list_orders", rerr)
			}
			return s.store.SetStatus(ctx, id, status, role)
		}
	}
	return res, err
}

func (s *OrderService) List(status constants.OrderStatus) []entities.Order {
	if status == "" {
		return s.store.Orders()
	}
	return s.store.ListByStatus(status)
}

func (s *OrderService) PendingCount() int { return s.store.PendingCount() }

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

func buildOrder(d dto.CreateOrderDTO) (entities.Order, error) {
	if len(d.Items) == 0 {
		return entities.Order{}, apperrors.NewInvalidInputError("корзина пуста")
	}

	order := entities.Order{
		CustomerID:      strings.TrimSpace(d.CustomerID),
		PaymentMethod:   d.PaymentMethod,
		Notes:           strings.TrimSpace(d.Notes),
		DeliveryFee:     roundMoney(d.DeliveryFee),
		ChangeRequested: d.ChangeRequested,
		Items:           make([]entities.OrderItem, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		if it.Quantity <= 0 {
			return entities.Order{}, apperrors.NewInvalidInputError("количество товара %s должно быть больше нуля", it.ProductID)
		}
		order.Items = append(order.Items, entities.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Note:      it.Note,
		})
		order.Subtotal += float64(it.Quantity) * it.UnitPrice
	}
	order.Subtotal = roundMoney(order.Subtotal)
	order.Total = roundMoney(order.Subtotal + order.DeliveryFee)

	// Сдача считается только для наличных.
	if d.PaymentMethod == constants.PaymentCash && d.ChangeRequested {
		if d.CashTendered == nil {
			return entities.Order{}, apperrors.NewInvalidInputError("для сдачи укажите сумму наличных")
		}
		tendered := roundMoney(*d.CashTendered)
		if tendered < order.Total {
			return entities.Order{}, apperrors.NewInvalidInputError("сумма наличных %.2f меньше итога %.2f", tendered, order.Total)
		}
		order.CashTendered = null.Float64From(tendered)
		order.ChangeDue = null.Float64From(roundMoney(tendered - order.Total))
	} else {
		order.ChangeRequested = false
	}

	order.Status = InitialStatus(order.PaymentMethod)
	return order, nil
}
