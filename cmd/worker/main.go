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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	mqcontracts "habittracker/contracts/mq"
	"habittracker/internal/cache"
	"habittracker/internal/config"
	"habittracker/internal/mqhandler"
	"habittracker/internal/repository"
	"habittracker/pkg/db"
	"habittracker/pkg/logger"
	"habittracker/pkg/mq"
	"habittracker/pkg/outbox"
	redisclient "habittracker/pkg/redis"
	"habittracker/pkg/util"
)

type binding struct {
	queue      string
	routingKey string
	handle     mq.MessageHandler
}

func main() {
	log := logger.NewLoggerWithLevel(os.Getenv("LOG_LEVEL"))
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting habit worker...",
		zap.String("mq_url", cfg.MQ.URL),
		zap.Ints("milestones", cfg.App.Milestones),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	entryRepo := repository.NewEntryRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	viewCache := cache.NewViewCache(rdb, cfg.Redis.CacheTTL, log)
	deduper := util.NewDeduper(rdb, 24*time.Hour, log)
	retries := util.NewRetryCounter(rdb, time.Hour)

	milestoneHandler := mqhandler.NewEntryToggledMilestoneHandler(entryRepo, milestoneRepo, viewCache, deduper, cfg.App.Milestones, log)
	cacheHandler := mqhandler.NewHabitChangedCacheHandler(viewCache, log)

	bindings := []binding{
		{"entry.toggled.milestones.q", mqcontracts.RoutingKeyEntryToggled, milestoneHandler.Handle},
		{"habit.created.cache.q", mqcontracts.RoutingKeyHabitCreated, cacheHandler.Handle},
		{"habit.updated.cache.q", mqcontracts.RoutingKeyHabitUpdated, cacheHandler.Handle},
		{"habit.deleted.cache.q", mqcontracts.RoutingKeyHabitDeleted, cacheHandler.Handle},
	}

	var consumers []*mq.Consumer
	for _, b := range bindings {
		log.Info("Initializing MQ consumer",
			zap.String("queue", b.queue),
			zap.String("routing_key", b.routingKey),
		)
		consumer, err := mq.NewConsumer(cfg.MQ.URL, b.queue, b.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer", zap.String("queue", b.queue), zap.Error(err))
		}
		defer consumer.Close()

		consumer.SetHandler(b.handle)
		consumer.WithRetryPolicy(retries, publisher, cfg.MQ.MaxRetries)
		consumers = append(consumers, consumer)

		go func(c *mq.Consumer, queue string) {
			if err := c.StartConsuming(); err != nil {
				log.Fatal("Consumer failed", zap.String("queue", queue), zap.Error(err))
			}
		}(consumer, b.queue)
	}

	// Outbox dispatcher
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher := outbox.NewDispatcher(outbox.NewRepository(dbConn), db.NewTxRunner(dbConn), publisher, log).
		WithMaxRetries(5).
		WithInterval(time.Second)
	go dispatcher.Start(ctx)

	// Ops endpoints
	gin.SetMode(gin.ReleaseMode)
	ops := gin.New()
	ops.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	ops.GET("/readyz", func(c *gin.Context) {
		for _, consumer := range consumers {
			if !consumer.IsConnected() {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
				return
			}
		}
		if err := dbConn.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	ops.GET("/metrics", gin.WrapH(promhttp.Handler()))

	opsAddr := config.OpsAddr()
	srv := &http.Server{Addr: opsAddr, Handler: ops, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("Ops server starting", zap.String("addr", opsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Ops server failed", zap.Error(err))
		}
	}()

	log.Info("habit worker is fully initialized and running", zap.Int("consumers", len(consumers)))

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down habit worker gracefully...")

	log.Info("Stopping MQ consumers...")
	for _, c := range consumers {
		c.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Ops server shutdown error", zap.Error(err))
	}

	log.Info("habit worker shutdown complete")
}
