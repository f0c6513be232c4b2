package main

import (
	"context"
	"errors"
	"log"
	"net/http"
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
	"github.com/segyhp/sacco-ledger/internal/handler"
	"github.com/segyhp/sacco-ledger/internal/repository"
	"github.com/segyhp/sacco-ledger/internal/repository/memory"
	"github.com/segyhp/sacco-ledger/internal/repository/postgres"
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
	zap.ReplaceGlobals(zlog)

	ctx := context.Background()

	store, err := initStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()
	memberCache := cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)

	docs, err := documents.NewOsStore(cfg.Documents.RootDir, cfg.Business.MaxDocumentSize)
	if err != nil {
		zlog.Fatal("Failed to prepare document storage", zap.String("dir", cfg.Documents.RootDir), zap.Error(err))
	}

	// Initialize services
	memberService := service.NewMemberService(store, memberCache, cfg, zlog)
	loanService := service.NewLoanService(store, docs, memberCache, cfg, zlog)
	savingsService := service.NewSavingsService(store, memberCache, cfg, zlog)

	// Setup routes
	router := handler.NewRouter(handler.Handlers{
		Members: handler.NewMemberHandler(memberService, zlog),
		Loans:   handler.NewLoanHandler(loanService, cfg.Business.MaxDocumentSize, zlog),
		Savings: handler.NewSavingsHandler(savingsService, zlog),
		Health:  handler.NewHealthHandler(store, redisClient, cfg.GetHealthTimeout()),
	}, zlog.Named("http"))

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		zlog.Info("Server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Server.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server exited")
}

func initStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (repository.Store, error) {
	if cfg.Storage.Driver == config.DriverMemory {
		zlog.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return postgres.NewStore(db, cfg.Database, zlog.Named("postgres")), nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
