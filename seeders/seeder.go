package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedAlertSettings записывает заводские настройки звука для панелей с оповещениями.
func SeedAlertSettings(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения настроек звука...")

	if err := seedAlertSettings(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения настроек звука (AlertSettings): %v", err)
	}
	log.Println("✅ Настройки звука записаны!")
}

// SeedDemoOrders наполняет очередь заказами для ручной проверки панелей.
func SeedDemoOrders(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("▶️  Запуск наполнения демонстрационных заказов...")

	if err := seedDemoOrders(ctx, db); err != nil {
		log.Fatalf("❌ Ошибка наполнения заказов (Orders): %v", err)
	}
	log.Println("✅ Демонстрационные заказы созданы!")
}
