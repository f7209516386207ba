/**
 * @description
 * This is the main entry point for the payment-service. It loads configuration,
 * connects PostgreSQL, RabbitMQ and Redis, picks the live or mock OSP gateway,
 * wires the payment orchestrator, starts the reconciliation scheduler and serves
 * the HTTP API until it receives a shutdown signal.
 *
 * @dependencies
 * - github.com/joho/godotenv: local .env loading for development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: confirm rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/ospclient, pkg/rabbitmq: gateway and event clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dummybank/payment-service/internal/api"
	"github.com/dummybank/payment-service/internal/app"
	"github.com/dummybank/payment-service/internal/config"
	"github.com/dummybank/payment-service/internal/currency"
	"github.com/dummybank/payment-service/internal/platform/logger"
	"github.com/dummybank/payment-service/internal/store"
	"github.com/dummybank/payment-service/pkg/ospclient"
	"github.com/dummybank/payment-service/pkg/rabbitmq"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("level=warn component=bootstrap msg=\".env load failed\" err=%v", err)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url must be configured\" env=DATABASE_URL")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Info("starting payment-service", "port", cfg.ServerPort, "mock_osp", cfg.UseMockOSP)

	// A zero or missing rate is a fatal precondition.
	converter, err := currency.NewConverter(cfg.USDToKHRRate)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"currency converter init failed\" err=%v", err)
	}

	if cfg.RunMigrations {
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database migrations failed\" err=%v", err)
		}
		appLogger.Info("database migrations applied")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	appLogger.Info("database connected")

	var producer rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: appLogger}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		appLogger.Warn("rabbitmq url missing; events will not be published")
	} else if eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.EventsExchange, appLogger); err != nil {
		appLogger.Warn("rabbitmq producer unavailable; using fallback", "err", err)
	} else {
		producer = eventProducer
		defer eventProducer.Close()
		appLogger.Info("rabbitmq producer connected", "exchange", cfg.EventsExchange)
	}

	var gateway app.Gateway
	if cfg.UseMockOSP {
		appLogger.Warn("using mock OSP gateway")
		gateway = ospclient.NewMock(ospclient.DefaultMockBills(), appLogger)
	} else {
		if strings.TrimSpace(cfg.OSPBaseURL) == "" {
			log.Fatalf("level=fatal component=bootstrap msg=\"osp base url must be configured\" env=OSP_BASE_URL")
		}
		gateway = ospclient.NewClient(cfg.OSPBaseURL, cfg.OSPAuth, cfg.OSPPartner, cfg.OSPTimeout(), appLogger)
	}

	repository := store.NewPostgresRepository(dbpool)

	paymentService := app.NewService(repository, gateway, converter, producer, appLogger, app.Options{
		FeeUSD: cfg.FeeAmount,
		Retry: app.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay(),
		},
		CompensationTimeout: compensationTimeout(cfg),
	})

	if cfg.ConfirmRateLimit > 0 {
		if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
			defer redisClient.Close()
			rule := app.ConfirmRateLimitRule(cfg.ConfirmRateLimit, cfg.ConfirmRateLimitWindow())
			paymentService.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix), rule)
			appLogger.Info("confirm rate limiting enabled", "limit", rule.Limit, "window", rule.Window)
		}
	}

	reconciler := app.NewReconciler(repository, producer, appLogger, cfg.ReconciliationStaleAfter())
	scheduler := app.NewScheduler(reconciler, appLogger, cfg.ReconciliationSchedule)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reconciliation scheduler start failed\" err=%v", err)
	}

	handlers := api.NewPaymentHandlers(paymentService, appLogger)
	router := api.NewRouter(handlers, api.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		RequestTimeout: requestTimeout(cfg),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("server listening", "addr", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	appLogger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("http shutdown failed", "err", err)
	}
	<-scheduler.Stop().Done()

	appLogger.Info("shutdown complete")
}

// connectRedis returns nil when Redis is not configured or not reachable; rate
// limiting is then disabled rather than blocking startup.
func connectRedis(redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; confirm rate limiting disabled\" env=REDIS_URL")
		return nil
	}
	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; confirm rate limiting disabled\" err=%v", err)
		return nil
	}
	client := redis.NewClient(redisOptions)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; confirm rate limiting disabled\" err=%v", err)
		client.Close()
		return nil
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}

// compensationTimeout leaves room for every reverse attempt to hit the gateway timeout.
func compensationTimeout(cfg config.Config) time.Duration {
	attempts := time.Duration(cfg.RetryAttempts)
	return attempts*(cfg.OSPTimeout()+cfg.RetryDelay()) + 10*time.Second
}

// requestTimeout covers lookup, commit, confirm and compensation at their worst.
func requestTimeout(cfg config.Config) time.Duration {
	return 4*compensationTimeout(cfg) + 10*time.Second
}
