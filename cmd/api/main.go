package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"habittracker/internal/cache"
	"habittracker/internal/config"
	"habittracker/internal/handler"
	"habittracker/internal/httpserver"
	"habittracker/internal/repository"
	authsvc "habittracker/internal/service/auth"
	habitsvc "habittracker/internal/service/habit"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
	"habittracker/pkg/mq"
	"habittracker/pkg/outbox"
	redisclient "habittracker/pkg/redis"
)

func main() {
	log := logger.NewLoggerWithLevel(os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting habit api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("timezone", cfg.App.Timezone),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if err := redisclient.Ping(context.Background(), rdb); err != nil {
		log.Warn("Redis unavailable, views will be recomputed", zap.Error(err))
	}

	// RabbitMQ publisher, used by the admin replay endpoints
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	userRepo := repository.NewUserRepository(dbConn, log)
	habitRepo := repository.NewHabitRepository(dbConn, log)
	entryRepo := repository.NewEntryRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	outboxRepo := outbox.NewRepository(dbConn)

	viewCache := cache.NewViewCache(rdb, cfg.Redis.CacheTTL, log)
	denylist := cache.NewTokenDenylist(rdb)

	authService := authsvc.NewService(userRepo, denylist, cfg.JWT.Secret, cfg.JWT.TTL, log)
	habitService := habitsvc.NewService(
		habitRepo,
		entryRepo,
		milestoneRepo,
		db.NewTxRunner(dbConn),
		outbox.NewWriter(outboxRepo),
		viewCache,
		log,
	)

	router := httpserver.NewRouter(httpserver.Deps{
		Auth:          handler.NewAuthHandler(authService, log),
		Habits:        handler.NewHabitHandler(habitService, cfg.Location(), log),
		Admin:         handler.NewAdminHandler(outbox.NewReplayService(outboxRepo, publisher, log), log),
		Authenticator: authService,
		AuthLimiter:   httpserver.NewIPRateLimiter(cfg.Server.AuthRateLimit, cfg.Server.AuthBurst),
		Ready: map[string]httpserver.ReadinessCheck{
			"db": dbConn.Ping,
			"mq": func(context.Context) error {
				if !publisher.IsConnected() {
					return errors.New("publisher not connected")
				}
				return nil
			},
		},
		Logger: log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habit api gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}
	log.Info("habit api shutdown complete")
}
