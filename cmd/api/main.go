package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/theopensource-company/playrbase-auth/internal/api/http"
	"github.com/theopensource-company/playrbase-auth/internal/api/http/handlers"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
	"github.com/theopensource-company/playrbase-auth/internal/config"
	"github.com/theopensource-company/playrbase-auth/internal/events"
	"github.com/theopensource-company/playrbase-auth/internal/mailer"
	"github.com/theopensource-company/playrbase-auth/internal/observability"
	"github.com/theopensource-company/playrbase-auth/internal/persistence"
	"github.com/theopensource-company/playrbase-auth/internal/repository"
	"github.com/theopensource-company/playrbase-auth/internal/service"
	"github.com/theopensource-company/playrbase-auth/internal/worker"
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

	var (
		rdb            *persistence.Redis
		redisClient    *goredis.Client
		challengeStore repository.ChallengeStore
		permitStore    repository.PermitStore
	)
	if cfg.Redis.Addr == "" || cfg.Redis.Addr == "memory" {
		logger.Warn("redis disabled; using in-memory challenge and permit stores")
		challengeStore = repository.NewMemoryChallengeStore()
		permitStore = repository.NewMemoryPermitStore()
	} else {
		rdb = persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
		redisClient = rdb.Client
		challengeStore = repository.NewRedisChallengeStore(redisClient)
		permitStore = repository.NewRedisPermitStore(redisClient)
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	credentialRepo := repository.NewCredentialRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	sender := mailer.NewSender(cfg.Mail, redisClient, logger)

	tokens := auth.NewTokenManager(cfg.Auth)
	secureCookies := cfg.App.Production()
	sessionMiddleware := auth.NewSessionMiddleware(tokens, cfg.Auth.CookieName, secureCookies)

	birthdateService := service.NewBirthdateService(*cfg, service.BirthdateDependencies{
		PermitStore: permitStore,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	magicLinkService := service.NewMagicLinkService(*cfg, service.MagicLinkDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Birthdate:  birthdateService,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	passkeyService, err := service.NewPasskeyService(*cfg, service.PasskeyDependencies{
		UserRepo:       userRepo,
		CredentialRepo: credentialRepo,
		ChallengeStore: challengeStore,
		Tokens:         tokens,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("failed to init webauthn", zap.Error(err))
	}
	emailChangeService := service.NewEmailChangeService(*cfg, service.EmailChangeDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	notificationService := service.NewNotificationService(cfg.Mail, sender, logger)
	worker.StartNotificationWorker(notificationService, dispatcher)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Production(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		MagicLink:   handlers.NewMagicLinkHandler(magicLinkService, cfg.Auth.CookieName, secureCookies),
		Token:       handlers.NewTokenHandler(cfg.Auth.CookieName, secureCookies),
		Passkey:     handlers.NewPasskeyHandler(passkeyService, cfg.Auth.CookieName, secureCookies),
		Birthdate:   handlers.NewBirthdateHandler(birthdateService, tokens),
		EmailChange: handlers.NewEmailChangeHandler(emailChangeService, cfg.Auth.CookieName, secureCookies, cfg.App.PlatformOrigin),
		Session:     sessionMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
