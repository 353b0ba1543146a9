package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/stockout-sync/internal/application/alerts"
	"github.com/jhoicas/stockout-sync/internal/application/forecasting"
	"github.com/jhoicas/stockout-sync/internal/application/inventorysync"
	"github.com/jhoicas/stockout-sync/internal/application/scheduler"
	"github.com/jhoicas/stockout-sync/internal/domain/entity"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/marketplace"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/messaging"
	"github.com/jhoicas/stockout-sync/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/stockout-sync/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/stockout-sync/internal/interfaces/http"
	"github.com/jhoicas/stockout-sync/pkg/config"
	"github.com/jhoicas/stockout-sync/pkg/httpclient"
	"github.com/jhoicas/stockout-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("cron", cfg.Scheduler.Cron).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if cfg.DB.ApplySchema {
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("aplicar esquema")
		}
		log.Info().Msg("esquema aplicado")
	}

	sellerRepo := postgres.NewSellerRepository(pool)
	skuRepo := postgres.NewSKURepository(pool)
	historyRepo := postgres.NewInventoryHistoryRepository(pool)
	forecastRepo := postgres.NewForecastRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	zl := log.Zerolog()
	httpCfg := func(baseURL string) httpclient.Config {
		return httpclient.Config{
			BaseURL:           baseURL,
			Timeout:           cfg.Marketplace.Timeout,
			MaxRetries:        cfg.Marketplace.MaxRetries,
			RetryDelay:        cfg.Marketplace.RetryDelay,
			RequestsPerSecond: cfg.Marketplace.RequestsPerSecond,
			Logger:            &zl,
		}
	}

	var refresher *marketplace.TokenRefresher
	if cfg.OAuth.WBClientID != "" && cfg.OAuth.WBClientSecret != "" {
		refresher = marketplace.NewTokenRefresher(cfg.OAuth.WBURL, cfg.OAuth.WBClientID, cfg.OAuth.WBClientSecret, httpCfg(cfg.OAuth.WBURL))
	}
	registry := marketplace.NewRegistry(marketplace.RegistryConfig{
		WB:               httpCfg(cfg.Marketplace.WBBaseURL),
		Ozon:             httpCfg(cfg.Marketplace.OzonBaseURL),
		WBRefresher:      refresher,
		RefreshThreshold: cfg.OAuth.RefreshThreshold,
	}, zl)

	workers := inventorysync.NewWorkers(
		inventorysync.NewWorker(entity.MarketplaceWB, registry, txRunner, zl),
		inventorysync.NewWorker(entity.MarketplaceOzon, registry, txRunner, zl),
	)
	forecaster := forecasting.NewUseCase(skuRepo, historyRepo, forecastRepo, forecasting.Config{
		HistoryDays:         cfg.Forecast.HistoryDays,
		MinPoints:           cfg.Forecast.MinPoints,
		ConfidenceThreshold: cfg.Forecast.ConfidenceThreshold,
	}, zl)

	notifiers := alerts.MultiNotifier{alerts.NewLogNotifier(zl)}
	if cfg.Kafka.Enabled() {
		publisher := messaging.NewKafkaAlertPublisher(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar productor Kafka")
			}
		}()
		notifiers = append(notifiers, publisher)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.AlertsTopic).Msg("alertas publicadas en Kafka")
	}
	evaluator := alerts.NewEvaluator(forecastRepo, notifiers, cfg.Forecast.AlertWindowDays, zl)

	deps := scheduler.Deps{
		Sellers:    sellerRepo,
		Syncer:     workers,
		Forecaster: forecaster,
		Alerts:     evaluator,
	}
	if cfg.Redis.Enabled() {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis no responde; el lease se intentará en cada ciclo")
		}
		deps.Locker = infraredis.NewCycleLock(rdb, "")
	}

	sched, err := scheduler.New(deps, scheduler.Config{
		Cron:           cfg.Scheduler.Cron,
		BootstrapDelay: cfg.Scheduler.BootstrapDelay,
		Concurrency:    cfg.Scheduler.Concurrency,
		LockTTL:        cfg.Redis.LockTTL,
	}, zl)
	if err != nil {
		log.Fatal().Err(err).Msg("configurar scheduler")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("iniciar scheduler")
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET vacío: rutas /admin sin autenticación")
	}
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Minute * 5,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())
	httpRouter.Router(app, httpRouter.RouterDeps{
		Admin:       httpRouter.NewAdminHandler(sched, sellerRepo, registry, cfg.Marketplace.SalesLookbackDays, zl),
		ServiceName: cfg.App.Name,
		JWTSecret:   cfg.Auth.JWTSecret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("el ciclo en curso no terminó a tiempo")
	}

	log.Info().Msg("aplicación detenida")
}
