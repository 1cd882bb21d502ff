package main

import (
	"context"
	"flag"
	"log"

	"order-dispatch/internal/migrations"
	"order-dispatch/pkg/config"
	"order-dispatch/pkg/database/postgresql"
	applogger "order-dispatch/pkg/logger"
	"order-dispatch/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runSettings := flag.Bool("settings", false, "Записать настройки звука по умолчанию")
	runOrders := flag.Bool("orders", false, "Создать демонстрационные заказы")
	runAll := flag.Bool("all", false, "Запустить все сидеры (эквивалентно -settings -orders)")

	flag.Parse()

	if !*runSettings && !*runOrders && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed/main.go -settings")
		log.Println("  go run ./seeders/cmd/seed/main.go -all")
		log.Println("======================================================")
		return
	}

	cfg := config.New()
	logger := applogger.NewLogger(cfg.Logger.Level, "")
	log.Println("📦 Используется DSN:", cfg.Postgres.DSN)

	ctx := context.Background()
	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к БД: %v", err)
	}
	defer dbPool.Close()

	if err := migrations.Up(ctx, dbPool); err != nil {
		log.Fatalf("❌ Ошибка применения миграций: %v", err)
	}

	log.Println("======================================================")

	if *runAll || *runSettings {
		seeders.SeedAlertSettings(dbPool)
		log.Println("======================================================")
	}

	if *runAll || *runOrders {
		seeders.SeedDemoOrders(dbPool)
		log.Println("======================================================")
	}

	log.Println("✅ Все указанные операции сидирования успешно завершены.")
	log.Println("======================================================")
}
