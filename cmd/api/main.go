package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/thread-service/internal/ai"
	httptransport "github.com/spec-kit/thread-service/internal/api/http"
	"github.com/spec-kit/thread-service/internal/api/http/handlers"
	"github.com/spec-kit/thread-service/internal/auth"
	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/events"
	"github.com/spec-kit/thread-service/internal/observability"
	"github.com/spec-kit/thread-service/internal/persistence"
	"github.com/spec-kit/thread-service/internal/push"
	"github.com/spec-kit/thread-service/internal/repository"
	"github.com/spec-kit/thread-service/internal/service"
	"github.com/spec-kit/thread-service/internal/stream"
	"github.com/spec-kit/thread-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	threadRepo := repository.NewThreadRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	triggerRepo := repository.NewTriggerRepository(pool)
	deviceRepo := repository.NewDeviceRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	changeStream := stream.NewStream(redis.Client, logger)
	pushClient := push.NewClient(cfg.Push)
	aiClient := ai.NewClient(cfg.AI)

	contextService := service.NewContextService(messageRepo, threadRepo)
	responder := service.NewResponder(contextService, aiClient, logger)
	presenceService := service.NewPresenceService(redis.Client, cfg.Presence, logger)
	threadService := service.NewThreadService(service.ThreadDependencies{
		ThreadRepo:  threadRepo,
		MessageRepo: messageRepo,
		Dispatcher:  dispatcher,
		Publisher:   changeStream,
		Contexts:    contextService,
		Responder:   responder,
		Presence:    presenceService,
		Logger:      logger,
	})
	dispatchService := service.NewDispatchService(triggerRepo, dispatcher, logger, metrics, cfg.Notify)
	dispatchService.RegisterHandlers()
	registrationService := service.NewRegistrationService(deviceRepo, pushClient, logger)

	dispatchWorker := worker.NewDispatchWorker(triggerRepo, deviceRepo, messageRepo,
		pushClient, logger, metrics, cfg.Notify, cfg.Push)
	go dispatchWorker.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(),
		Threads:        handlers.NewThreadsHandler(threadService),
		Messages:       handlers.NewMessagesHandler(threadService),
		Presence:       handlers.NewPresenceHandler(presenceService),
		Devices:        handlers.NewDevicesHandler(registrationService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	responder.Wait()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
