// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"order-dispatch/internal/controllers"
	"order-dispatch/internal/migrations"
	"order-dispatch/internal/repositories"
	"order-dispatch/internal/routes"
	"order-dispatch/internal/services"
	"order-dispatch/pkg/changefeed"
	"order-dispatch/pkg/config"
	"order-dispatch/pkg/customvalidator"
	"order-dispatch/pkg/database/postgresql"
	apperrors "order-dispatch/pkg/errors"
	applogger "order-dispatch/pkg/logger"
	"order-dispatch/pkg/middleware"
	"order-dispatch/pkg/scheduler"
	"order-dispatch/pkg/utils"
	appwebsocket "order-dispatch/pkg/websocket"
)

const (
	commandDedupTTL = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// backend - выбранные хранилище и лента изменений.
type backend struct {
	orders    repositories.OrderRepositoryInterface
	settings  repositories.AlertSettingsRepositoryInterface
	transport changefeed.Transport
	closers   []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Logger.Level, cfg.Logger.File)
	defer logger.Sync()

	// 2. Echo и middleware
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, middleware.ActorRoleHeader},
		ExposeHeaders: []string{"Content-Disposition"},
	}))

	// 3. Валидатор
	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}
	e.Validator = utils.NewValidator(v)

	// 4. Хранилище и лента изменений
	be, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("не удалось подготовить хранилище", zap.Error(err))
	}
	defer be.close()

	// 5. Сервисы
	feedOpts := services.FeedOptions{MaxRetries: cfg.Feed.MaxRetries, RetryDelay: cfg.Feed.RetryDelay}
	sounds := services.LoadSoundCatalog(cfg.Alert.SoundsFile, logger)
	settingsService := services.NewAlertSettingsService(be.settings, sounds, logger)
	if _, err := settingsService.List(ctx); err != nil {
		logger.Warn("настройки звука не прочитаны, действуют значения по умолчанию", zap.Error(err))
	}

	orderService := services.NewOrderService(be.orders, services.NewChangeFeedSubscriber(be.transport, feedOpts, logger), logger)
	if err := orderService.Start(); err != nil {
		logger.Fatal("не удалось подписаться на ленту заказов", zap.Error(err))
	}
	defer orderService.Close()

	reportService := services.NewReportService(be.orders, logger)

	hub := appwebsocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	sessions := services.NewSessionRegistry(services.SessionDeps{
		Orders:    be.orders,
		Settings:  settingsService,
		Sounds:    sounds,
		Transport: be.transport,
		Clock:     scheduler.New(),
		Feed:      feedOpts,
		Alerts:    services.AlertEngineOptions{VisualWindow: cfg.Alert.VisualWindow},
		Logger:    logger,
	}, logger)
	defer sessions.CloseAll()

	dedup := controllers.NewCommandDeduplicator(commandDedupTTL)
	go dedup.Cleanup(ctx, time.Minute)

	// 6. Роуты
	routes.InitRouter(e, routes.Deps{
		OrderService:         orderService,
		ReportService:        reportService,
		AlertSettingsService: settingsService,
		Sounds:               sounds,
		Sessions:             sessions,
		Hub:                  hub,
		Dedup:                dedup,
		Logger:               logger,
	})

	// 7. Запуск и остановка
	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver), zap.String("feed", cfg.Feed.Driver))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, закрываю сервер")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", zap.Error(err))
	}
}

func buildBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	be := &backend{}

	var pool *pgxpool.Pool
	var redisClient *redis.Client

	needPostgres := cfg.Storage.Driver == "postgres" || cfg.Feed.Driver == "postgres"
	if needPostgres {
		p, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			return nil, err
		}
		pool = p
		be.closers = append(be.closers, pool.Close)
	}

	if cfg.Storage.Driver == "postgres" || cfg.Feed.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if _, err := client.Ping(ctx).Result(); err != nil {
			if cfg.Feed.Driver == "redis" {
				be.close()
				return nil, err
			}
			logger.Warn("Redis недоступен, настройки звука без кэша", zap.Error(err), zap.String("address", cfg.Redis.Address))
			_ = client.Close()
		} else {
			redisClient = client
			be.closers = append(be.closers, func() { _ = client.Close() })
		}
	}

	var publisher changefeed.Publisher
	switch cfg.Feed.Driver {
	case "postgres":
		be.transport = changefeed.NewPostgresTransport(pool)
		publisher = changefeed.NewPostgresPublisher(pool)
	case "redis":
		be.transport = changefeed.NewRedisTransport(redisClient)
		publisher = changefeed.NewRedisPublisher(redisClient)
	case "amqp":
		be.transport = changefeed.NewAMQPTransport(cfg.Rabbit.URL)
		amqpPublisher := changefeed.NewAMQPPublisher(cfg.Rabbit.URL)
		publisher = amqpPublisher
		be.closers = append(be.closers, amqpPublisher.Close)
	case "memory":
		broker := changefeed.NewMemoryBroker()
		be.transport = broker
		publisher = broker
	default:
		be.close()
		return nil, apperrors.NewInvalidInputError("неизвестный FEED_DRIVER %q", cfg.Feed.Driver)
	}

	switch cfg.Storage.Driver {
	case "postgres":
		if err := migrations.Up(ctx, pool); err != nil {
			be.close()
			return nil, err
		}
		be.orders = repositories.NewOrderRepository(pool, publisher, logger)
		be.settings = repositories.NewAlertSettingsRepository(pool, publisher, logger)
		if redisClient != nil {
			be.settings = repositories.NewCachedAlertSettingsRepository(
				be.settings, repositories.NewRedisCacheRepository(redisClient), cfg.Alert.SettingsCacheTTL, logger)
		}
	case "memory":
		if cfg.Feed.Driver != "memory" {
			logger.Warn("память процесса видна только этому процессу, внешняя лента изменений заставит лишь перечитывать её",
				zap.String("feed", cfg.Feed.Driver))
		}
		be.orders = repositories.NewMemoryOrderRepository(publisher)
		be.settings = repositories.NewMemoryAlertSettingsRepository(publisher)
	default:
		be.close()
		return nil, apperrors.NewInvalidInputError("неизвестный STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	logger.Info("хранилище готово", zap.String("storage", cfg.Storage.Driver), zap.String("feed", cfg.Feed.Driver))
	return be, nil
}
