package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nepway/internal/config"
	handlers "nepway/internal/handlers/shared"
	"nepway/internal/middleware"
	"nepway/internal/repositories/mongodb"
	"nepway/internal/services"
	"nepway/pkg/cache"
	"nepway/pkg/database"
	"nepway/pkg/events"
	"nepway/pkg/logger"
	"nepway/pkg/push"
	"nepway/pkg/scheduler"
	"nepway/pkg/websocket"
	"nepway/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Caller:  cfg.Log.Caller,
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.WithError(err).Fatal("Server stopped with error")
	}
}

func run(cfg *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.NewMigrator(db.Database, appLogger).Up(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	clock := scheduler.RealClock()
	appCache := newCache(cfg.Redis, clock, appLogger)
	defer appCache.Close()

	publisher, err := newPublisher(cfg.Events, appLogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Realtime and push delivery are optional
	hub := websocket.NewHub(appLogger)
	go hub.Run(ctx)

	var pusher push.PushProvider
	if cfg.Push.Enabled {
		fcm, err := push.NewFCMProvider(ctx, cfg.Push.FCM.ProjectID, cfg.Push.FCM.Credentials)
		if err != nil {
			appLogger.WithError(err).Warn("FCM unavailable, push notifications disabled")
		} else {
			pusher = fcm
		}
	}

	// Repositories
	rideRepo := mongodb.NewRideRepository(db.Database, appCache)
	requestRepo := mongodb.NewRideRequestRepository(db.Database)
	notificationRepo := mongodb.NewNotificationRepository(db.Database)
	availabilityRepo := mongodb.NewDriverAvailabilityRepository(db.Database)

	// Services
	sched := scheduler.New(clock, appLogger, cfg.Lifecycle.TaskTimeout)
	emitter := services.NewEventEmitter(publisher, clock, cfg.Events.PublishTimeout, appLogger)
	notifier := services.NewNotificationService(notificationRepo, hub, pusher, cfg.Push.FCM.TopicPrefix, clock, appLogger)
	transitions := services.NewStatusTransitioner(rideRepo, requestRepo, notifier, emitter, clock, appLogger)
	progression := services.NewAutoProgression(cfg.Lifecycle, sched, appCache, rideRepo, transitions, appLogger)
	rideService := services.NewRideService(rideRepo, transitions, progression, notifier, emitter, clock, appLogger)
	requestService := services.NewRideRequestService(requestRepo, rideRepo, progression, notifier, emitter, clock, appLogger)
	driverService := services.NewDriverService(rideRepo, availabilityRepo, clock, cfg.App.Location())

	sweeper := services.NewExpirySweeper(rideRepo, requestRepo, appCache, emitter, clock, cfg.App.Location(), cfg.Lifecycle.SweepInterval, appLogger)
	sweeper.Register(sched)

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.WithError(err).Error("Scheduler stopped")
		}
	}()

	// Initialize Gin router
	if cfg.App.IsProduction() || !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	routes.Setup(router, &routes.Handlers{
		Ride:         handlers.NewRideHandler(rideService),
		RideRequest:  handlers.NewRideRequestHandler(requestService),
		Driver:       handlers.NewDriverHandler(driverService),
		Fare:         handlers.NewFareHandler(),
		Notification: handlers.NewNotificationHandler(notifier),
		Health: handlers.NewHealthHandler(cfg.App.Version, map[string]handlers.Pinger{
			"mongodb": db,
			"cache":   appCache,
		}),
		WebSocket: websocket.NewHandler(hub, websocket.Options{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			WriteTimeout:    cfg.WebSocket.WriteTimeout,
			PongTimeout:     cfg.WebSocket.PongTimeout,
			PingInterval:    cfg.WebSocket.PingInterval,
			MaxMessageSize:  cfg.WebSocket.MaxMessageSize,
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
		}, middleware.WebSocketIdentity),
	}, cfg.Security.JWTSecret)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.WithField("addr", server.Addr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("HTTP shutdown did not complete")
	}

	<-schedulerDone
	notifier.Wait()
	emitter.Wait()
	return nil
}

func newCache(cfg *config.RedisConfig, clock scheduler.Clock, appLogger *logger.Logger) cache.Cache {
	if !cfg.Enabled {
		appLogger.Info("Redis disabled, using in-process cache")
		return cache.NewMemoryCache(clock.Now)
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		KeyPrefix:    cfg.KeyPrefix,
	})
	if err != nil {
		appLogger.WithError(err).Warn("Redis unavailable, using in-process cache")
		return cache.NewMemoryCache(clock.Now)
	}
	return redisCache
}

func newPublisher(cfg *config.EventsConfig, appLogger *logger.Logger) (events.Publisher, error) {
	switch cfg.Broker {
	case config.EventsBrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.EventsBrokerRabbitMQ:
		publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitExchange, appLogger)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return publisher, nil
	default:
		return events.NopPublisher{}, nil
	}
}
