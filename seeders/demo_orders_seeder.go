package seeders

import (
	"context"
	"log"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"order-dispatch/internal/entities"
	"order-dispatch/internal/repositories"
	"order-dispatch/pkg/changefeed"
)

// seedDemoOrders кладёт по заказу в каждый активный статус, чтобы панели было что показать.
func seedDemoOrders(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение таблицы 'orders' демонстрационными заказами...")

	repo := repositories.NewOrderRepository(db, changefeed.NopPublisher{}, zap.NewNop())
	now := time.Now().UTC()

	for i, d := range demoOrdersData {
		subtotal := 0.0
		for _, it := range d.Items {
			subtotal += float64(it.Quantity) * it.UnitPrice
		}
		order := entities.Order{
			ID:            uuid.NewString(),
			CustomerID:    d.CustomerID,
			Status:        d.Status,
			PaymentMethod: d.PaymentMethod,
			Items:         d.Items,
			Subtotal:      subtotal,
			DeliveryFee:   demoDeliveryFee,
			Total:         subtotal + demoDeliveryFee,
			CreatedAt:     now.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     now.Add(time.Duration(i) * time.Minute),
		}
		if d.CourierID != "" {
			order.CourierID = null.StringFrom(d.CourierID)
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			log.Printf("Ошибка при вставке демонстрационного заказа (%s): %v", d.Status, err)
			return err
		}
	}
	return nil
}
