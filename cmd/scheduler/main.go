package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/segyhp/sacco-ledger/internal/cache"
	"github.com/segyhp/sacco-ledger/internal/config"
	"github.com/segyhp/sacco-ledger/internal/documents"
	"github.com/segyhp/sacco-ledger/internal/repository/postgres"
	"github.com/segyhp/sacco-ledger/internal/scheduler"
	"github.com/segyhp/sacco-ledger/internal/service"
	"github.com/segyhp/sacco-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zlog.Info("Starting ledger scheduler...")

	// Cohort runs must see the same ledger as the API, so the scheduler
	// always uses postgres.
	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(context.Background(), db); err != nil {
		zlog.Fatal("Failed to migrate database", zap.Error(err))
	}
	store := postgres.NewStore(db, cfg.Database, zlog.Named("postgres"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	memberCache := cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)

	docs, err := documents.NewOsStore(cfg.Documents.RootDir, cfg.Business.MaxDocumentSize)
	if err != nil {
		zlog.Fatal("Failed to prepare document storage", zap.Error(err))
	}

	loans := service.NewLoanService(store, docs, memberCache, cfg, zlog)
	savings := service.NewSavingsService(store, memberCache, cfg, zlog)

	sched, err := scheduler.New(cfg, loans, savings, cache.NewLocker(redisClient, cfg.Scheduler.LockTTL), zlog)
	if err != nil {
		zlog.Fatal("Failed to schedule jobs", zap.Error(err))
	}

	// Start the scheduler
	sched.Start()
	zlog.Info("Scheduler started", zap.Int("jobs", sched.Jobs()), zap.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down scheduler...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		zlog.Warn("Scheduler stopped before running jobs finished", zap.Error(err))
	}
	zlog.Info("Scheduler stopped")
}
