/**
 * @description
 * This is the main entry point for the transfer-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the payment gateway client, message brokers, repositories, the core
 * application engines, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/robfig/cron/v3: Scheduled refund reconciliation.
 * - internal/api, internal/app, internal/config, internal/phone, internal/store: Internal packages.
 * - pkg/gatewayclient: Client for the payment gateway API.
 * - pkg/rabbitmq: Client for RabbitMQ.
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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sahelpay/transfer-service/internal/api"
	"github.com/sahelpay/transfer-service/internal/app"
	"github.com/sahelpay/transfer-service/internal/config"
	"github.com/sahelpay/transfer-service/internal/phone"
	"github.com/sahelpay/transfer-service/internal/store"
	"github.com/sahelpay/transfer-service/pkg/gatewayclient"
	rmrabbit "github.com/sahelpay/transfer-service/pkg/rabbitmq"
	"github.com/shopspring/decimal"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment values\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting transfer-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish audit events. A missing broker
	// degrades to a no-op fallback rather than blocking startup.
	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the client for the payment gateway.
	gatewayClient := gatewayclient.NewClient(cfg.GatewayAPIBaseURL, cfg.GatewayAPIKey)

	// Redis is optional; verification rate limiting degrades when absent.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; verification rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; verification rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; verification rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Load the operator prefix table. The compiled-in table is the default;
	// deployments override it with a JSON file.
	directory := phone.DefaultDirectory()
	if strings.TrimSpace(cfg.OperatorTablePath) != "" {
		loaded, loadErr := phone.LoadDirectory(cfg.OperatorTablePath)
		if loadErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"operator table load failed\" path=%s err=%v", cfg.OperatorTablePath, loadErr)
		}
		directory = loaded
		log.Printf("level=info component=bootstrap msg=\"operator table loaded\" path=%s", cfg.OperatorTablePath)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application engines with their dependencies.
	feeCalculator := app.NewFeeCalculator(app.FeePolicy{
		MarkupPercent: decimal.NewFromFloat(cfg.FeeMarkupPercent),
		CapPercent:    decimal.NewFromFloat(cfg.FeeCapPercent),
	})

	verificationEngine := app.NewVerificationEngine(
		directory,
		gatewayClient,
		publisher,
		cfg.AuditExchange,
		cfg.DefaultPhoneCountry,
		time.Duration(cfg.GatewayVerifyTimeout)*time.Millisecond,
	)

	refundService := app.NewRefundService(
		repository,
		gatewayClient,
		publisher,
		cfg.AuditExchange,
		cfg.RefundRetryAttempts,
	)

	reconciler := app.NewRefundReconciler(
		repository,
		gatewayClient,
		refundService,
		time.Duration(cfg.ReconcileFailAfterHr)*time.Hour,
	)

	var rateLimiter *app.RedisRateLimiter
	if redisClient != nil {
		rateLimiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	// Initialize the API handlers.
	transferHandlers := api.NewTransferHandlers(verificationEngine, feeCalculator, refundService, reconciler, rateLimiter)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/transfers", api.TransferRoutes(transferHandlers, cfg.InternalAPIKey))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	// Wire up the refund status consumer: bind to gateway callback events and
	// ensure graceful shutdown.
	refundConsumer := app.NewRefundStatusConsumer(refundService)
	settlementConsumer := app.NewTransferSettledConsumer(repository, feeCalculator)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()

	refundBindings := map[string]rmrabbit.Handler{
		"refund.status.processing": refundConsumer.HandleMessage,
		"refund.status.completed":  refundConsumer.HandleMessage,
		"refund.status.failed":     refundConsumer.HandleMessage,
		"transfer.status.settled":  settlementConsumer.HandleMessage,
	}

	if err := rabbitConsumer.ConsumeWithBindings("sahelpay.events", cfg.RefundStatusQueue, refundBindings); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"refund consumer start failed\" err=%v", err)
	}

	// Schedule the periodic reconciliation sweep over refunds stuck in processing.
	cronLogger := cron.PrintfLogger(log.Default())
	scheduler := cron.New(cron.WithChain(cron.Recover(cronLogger)))
	if _, err := scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		result, sweepErr := reconciler.ReconcileProcessingRefunds(ctx, cfg.ReconcileLimit)
		if sweepErr != nil {
			log.Printf("level=error component=reconciler msg=\"scheduled sweep failed\" err=%v", sweepErr)
			return
		}
		log.Printf("level=info component=reconciler msg=\"scheduled sweep done\" scanned=%d completed=%d failed=%d unresolved=%d query_errors=%d",
			result.Scanned, result.Completed, result.Failed, result.Unresolved, result.QueryError)
	}); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"reconcile schedule invalid\" schedule=%q err=%v", cfg.ReconcileSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
