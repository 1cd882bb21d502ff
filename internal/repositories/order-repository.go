package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/constants"
	apperrors "order-dispatch/pkg/errors"
)

const orderTable = "orders"

var orderColumns = []string{
	"id", "number", "customer_id", "items", "status",
	"subtotal", "delivery_fee", "total", "payment_method", "notes",
	"change_requested", "cash_tendered", "change_due", "courier_id",
	"created_at", "updated_at",
}

const orderReturning = `id, number, customer_id, items, status,
	subtotal, delivery_fee, total, payment_method, notes,
	change_requested, cash_tendered, change_due, courier_id,
	created_at, updated_at`

// OrderRepositoryInterface - хранилище заказов. Все изменения статуса - compare-and-set по ожидаемому статусу.
type OrderRepositoryInterface interface {
	CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error)
	FindOrder(ctx context.Context, id string) (entities.Order, error)
	ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error)
	// applied=false: строка уже была в целевом состоянии, запись не понадобилась.
	UpdateOrderStatus(ctx context.Context, id string, from, to constants.OrderStatus) (order entities.Order, applied bool, err error)
	AssignCourier(ctx context.Context, id string, from constants.OrderStatus, courierID string) (order entities.Order, applied bool, err error)
	DeleteOrder(ctx context.Context, id string, actor constants.Role) error
}

type OrderRepository struct {
	storage   *pgxpool.Pool
	txManager TxManagerInterface
	publisher changefeed.Publisher
	logger    *zap.Logger
}

func NewOrderRepository(storage *pgxpool.Pool, publisher changefeed.Publisher, logger *zap.Logger) OrderRepositoryInterface {
	return &OrderRepository{
		storage:   storage,
		txManager: NewTxManager(storage),
		publisher: publisher,
		logger:    logger,
	}
}

// -----------------------------------------------------------
// SCAN
// -----------------------------------------------------------

func scanOrder(row pgx.Row) (entities.Order, error) {
	var o entities.Order
	var items []byte
	var cashTendered, changeDue *float64
	var courierID *string

	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &items, &o.Status,
		&o.Subtotal, &o.DeliveryFee, &o.Total, &o.PaymentMethod, &o.Notes,
		&o.ChangeRequested, &cashTendered, &changeDue, &courierID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return entities.Order{}, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return entities.Order{}, fmt.Errorf("ошибка разбора позиций заказа %s: %w", o.ID, err)
		}
	}
	o.CashTendered = null.Float64FromPtr(cashTendered)
	o.ChangeDue = null.Float64FromPtr(changeDue)
	o.CourierID = null.StringFromPtr(courierID)
	return o, nil
}

// orderRowReader - пул или открытая транзакция: удаление перечитывает заказ внутри своей.
type orderRowReader interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *OrderRepository) findOrder(ctx context.Context, q orderRowReader, id string) (entities.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, orderReturning, orderTable)
	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Order{}, apperrors.NewNotFoundError("заказ", id)
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("ошибка чтения заказа: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) FindOrder(ctx context.Context, id string) (entities.Order, error) {
	return r.findOrder(ctx, r.storage, id)
}

// -----------------------------------------------------------
// LIST
// -----------------------------------------------------------

func (r *OrderRepository) ListOrders(ctx context.Context, filter entities.OrderFilter) ([]entities.Order, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	builder := psql.Select(orderColumns...).From(orderTable).OrderBy("created_at ASC", "number ASC")

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, s.String())
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.CourierID != "" {
		builder = builder.Where(sq.Eq{"courier_id": filter.CourierID})
	}
	if filter.CustomerID != "" {
		builder = builder.Where(sq.Eq{"customer_id": filter.CustomerID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса заказов: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка заказов: %w", err)
	}
	defer rows.Close()

	orders := make([]entities.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заказа в списке: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// -----------------------------------------------------------
// CREATE
// -----------------------------------------------------------

func (r *OrderRepository) CreateOrder(ctx context.Context, order entities.Order) (entities.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return entities.Order{}, fmt.Errorf("ошибка сериализации позиций: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, customer_id, items, status, subtotal, delivery_fee, total,
			payment_method, notes, change_requested, cash_tendered, change_due, courier_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING %s`, orderTable, orderReturning)

	created, err := scanOrder(r.storage.QueryRow(ctx, query,
		order.ID, order.CustomerID, items, order.Status.String(), order.Subtotal, order.DeliveryFee, order.Total,
		order.PaymentMethod, order.Notes, order.ChangeRequested,
		order.CashTendered.Ptr(), order.ChangeDue.Ptr(), order.CourierID.Ptr(),
	))
	if err != nil {
		return entities.Order{}, fmt.Errorf("ошибка создания заказа: %w", err)
	}

	r.notify(ctx, changefeed.OpInsert, created.ID)
	return created, nil
}

// -----------------------------------------------------------
// UPDATE (compare-and-set)
// -----------------------------------------------------------

// UpdateOrderStatus меняет статус, только если в базе всё ещё from.
// Если заказ уже в to, запись считается выполненной и возвращается текущая строка.
func (r *OrderRepository) UpdateOrderStatus(ctx context.Context, id string, from, to constants.OrderStatus) (entities.Order, bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING %s`, orderTable, orderReturning)

	updated, err := scanOrder(r.storage.QueryRow(ctx, query, id, from.String(), to.String()))
	if err == nil {
		r.notify(ctx, changefeed.OpUpdate, id)
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return entities.Order{}, false, fmt.Errorf("ошибка обновления статуса: %w", err)
	}

	current, err := r.findOrder(ctx, r.storage, id)
	if err != nil {
		return entities.Order{}, false, err
	}
	if current.Status == to {
		return current, false, nil
	}
	return entities.Order{}, false, apperrors.NewConflictError(id, current.Status.String(), fmt.Sprintf("ожидался статус %s", from))
}

// AssignCourier назначает курьера и переводит заказ в out_for_delivery одной записью.
// Другой курьер на уже назначенном заказе - конфликт.
func (r *OrderRepository) AssignCourier(ctx context.Context, id string, from constants.OrderStatus, courierID string) (entities.Order, bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET courier_id = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND (courier_id IS NULL OR courier_id = $3)
		RETURNING %s`, orderTable, orderReturning)

	updated, err := scanOrder(r.storage.QueryRow(ctx, query, id, from.String(), courierID, constants.StatusOutForDelivery.String()))
	if err == nil {
		r.notify(ctx, changefeed.OpUpdate, id)
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return entities.Order{}, false, fmt.Errorf("ошибка назначения курьера: %w", err)
	}

	current, err := r.findOrder(ctx, r.storage, id)
	if err != nil {
		return entities.Order{}, false, err
	}
	if current.Status == constants.StatusOutForDelivery && current.CourierID.Valid && current.CourierID.String == courierID {
		return current, false, nil
	}
	return entities.Order{}, false, apperrors.NewConflictError(id, current.Status.String(), "заказ уже передан другому курьеру или сменил статус")
}

// -----------------------------------------------------------
// DELETE (с аудитом)
// -----------------------------------------------------------

func (r *OrderRepository) DeleteOrder(ctx context.Context, id string, actor constants.Role) error {
	err := r.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`
			DELETE FROM %s WHERE id = $1 AND status <> ALL($2)
			RETURNING %s`, orderTable, orderReturning)

		final := []string{constants.StatusDelivered.String(), constants.StatusCancelled.String()}
		deleted, err := scanOrder(tx.QueryRow(ctx, query, id, final))
		if errors.Is(err, pgx.ErrNoRows) {
			current, findErr := r.findOrder(ctx, tx, id)
			if findErr != nil {
				return findErr
			}
			return apperrors.NewConflictError(id, current.Status.String(), "завершённый заказ удалить нельзя")
		}
		if err != nil {
			return fmt.Errorf("ошибка удаления заказа: %w", err)
		}

		snapshot, err := json.Marshal(deleted)
		if err != nil {
			return fmt.Errorf("ошибка сериализации снимка заказа: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_audit_log (order_id, action, actor, snapshot) VALUES ($1, 'delete', $2, $3)`,
			id, actor.String(), snapshot,
		); err != nil {
			return fmt.Errorf("ошибка записи аудита удаления: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.notify(ctx, changefeed.OpDelete, id)
	return nil
}

// notify не возвращает ошибку: запись уже зафиксирована, а подписчики перечитают всё при переподключении.
func (r *OrderRepository) notify(ctx context.Context, op, id string) {
	if err := r.publisher.Publish(ctx, changefeed.Notice{Entity: constants.EntityOrders, Op: op, ID: id}); err != nil {
		r.logger.Warn("не удалось отправить уведомление об изменении заказа",
			zap.String("order_id", id), zap.String("op", op), zap.Error(err))
	}
}
