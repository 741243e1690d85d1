package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"vehicle-service-server/config"
	"vehicle-service-server/database"
	"vehicle-service-server/jobs"
	"vehicle-service-server/logger"
	"vehicle-service-server/notify"
	"vehicle-service-server/routes"
	"vehicle-service-server/services"
	"vehicle-service-server/store"
	"vehicle-service-server/telemetry"
	"vehicle-service-server/websocket"
)

func main() {
	envErr := godotenv.Load()

	config.Load()
	cfg := config.AppConfig

	if err := logger.Init(cfg.Server.GinMode); err != nil {
		panic(err)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(cfg.Telemetry)

	st, err := openStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	publisher := notify.Multi{notify.LogPublisher{}}
	if cfg.Redis.URL != "" {
		client, err := database.InitRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		publisher = append(publisher, notify.NewRedisPublisher(client, cfg.Redis.Channel))
		relay := notify.NewRedisRelay(client, cfg.Redis.Channel, hub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("❌ Redis relay stopped", zap.Error(err))
			}
		}()
	} else {
		publisher = append(publisher, hub)
	}

	uploader, err := services.NewUploader(cfg.Media)
	if err != nil {
		logger.Fatal("Failed to initialize media storage", zap.Error(err))
	}

	bookings := services.NewBookingService(st, publisher, services.Options{
		RequireManualProgress: cfg.Lifecycle.RequireManualProgress,
	})
	accounts := services.NewAccountService(st, nil)

	if cfg.Seed.Demo {
		if err := seedDemo(ctx, st, accounts, cfg.Seed); err != nil {
			logger.Error("❌ Demo seed failed", zap.Error(err))
		}
	}

	reminders := jobs.NewPaymentReminderJob(st, publisher, cfg.Lifecycle.PaymentReminderAfter, cfg.Lifecycle.PaymentReminderInterval)
	reminders.Start()
	defer reminders.Stop()
	tokenCleanup := jobs.NewTokenCleanupJob(st, 24*time.Hour)
	tokenCleanup.Start()
	defer tokenCleanup.Stop()

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	routes.SetupRoutes(ctx, router, &routes.Handler{
		Bookings: bookings,
		Accounts: accounts,
		Uploader: uploader,
		Hub:      hub,
		Upgrader: websocket.NewUpgrader(cfg.CORS.AllowedOrigins),
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(router, cfg.Telemetry.ServiceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🚀 Server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Server shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracer shutdown failed", zap.Error(err))
	}
}

func openStore(cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		logger.Warn("⚠️ Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	case "postgres", "":
		if err := database.Initialize(cfg.URL); err != nil {
			return nil, err
		}
		return store.NewGormStore(database.DB), nil
	default:
		return nil, errors.New("unknown STORE_DRIVER " + cfg.Driver)
	}
}
