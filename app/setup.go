package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sahilchouksey/devpilot-api/api"
	"github.com/sahilchouksey/devpilot-api/config"
	"github.com/sahilchouksey/devpilot-api/database"
	"github.com/sahilchouksey/devpilot-api/router"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/services/cron"
	"github.com/sahilchouksey/devpilot-api/services/llm"
	"github.com/sahilchouksey/devpilot-api/utils"
	"github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/cache"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func SetupAndRunServer() error {
	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	log, err := utils.NewLogger(env.GO_ENV, env.LOG_LEVEL)
	if err != nil {
		return err
	}
	defer log.Sync()

	// Initialize GORM database connection
	store, err := database.StartGORM(env, log)
	if err != nil {
		log.Error("check whether PostgreSQL is running (make docker-up or make db-up)")
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize database tables: %w", err)
	}
	if err := database.NewSeeder(store.GetDB(), log).SeedAll(); err != nil {
		return err
	}

	// Redis is optional; without it login brute-force protection is off
	var redisCache *cache.RedisCache
	if env.REDIS_URL != "" {
		redisCache, err = cache.NewRedisCache(env.REDIS_URL)
		if err != nil {
			log.Warn("redis unavailable, brute force protection disabled", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	ctx := context.Background()
	provider, err := llm.NewProvider(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to initialize language model provider: %w", err)
	}
	if closer, ok := provider.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	log.Info("language model provider ready", zap.String("provider", provider.Name()))

	db := store.GetDB()
	limiter := middleware.NewSlidingWindowLimiter(middleware.DefaultRateLimitWindow, map[middleware.RouteClass]int{
		middleware.RouteClassDefault:             env.RATE_LIMIT_DEFAULT,
		middleware.RouteClassChatMessage:         env.RATE_LIMIT_CHAT,
		middleware.RouteClassInterviewGeneration: env.RATE_LIMIT_INTERVIEW,
	})
	chatService := services.NewChatService(db, provider, services.ChatServiceConfig{
		EmbeddingDimensions: env.EMBEDDING_DIMENSIONS,
		Logger:              log,
	})
	interviewService := services.NewInterviewService(db, provider, log)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		cronManager = cron.NewCronManager(db, cron.Config{
			Limiter:           limiter,
			Chat:              chatService,
			SessionPurgeAfter: time.Duration(env.SESSION_PURGE_AFTER_DAYS) * 24 * time.Hour,
			Logger:            log,
		})
		if err := cronManager.Start(); err != nil {
			// Don't fail the app, just log the warning
			log.Warn("failed to start cron jobs", zap.Error(err))
			cronManager = nil
		}
	}
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
	}()

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: time.Duration(env.ACCESS_TOKEN_EXPIRE_MINUTES) * time.Minute,
		Issuer: env.JWT_ISSUER,
	})

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT), log)
	router.SetupRoutes(server.GetEngine(), router.Dependencies{
		Store:            store,
		JWTManager:       jwtManager,
		RedisCache:       redisCache,
		ChatService:      chatService,
		InterviewService: interviewService,
		Limiter:          limiter,
		AllowedOrigins:   env.ALLOWED_ORIGINS,
		Logger:           log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Run()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
