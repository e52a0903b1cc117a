package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"praxihub/backend/config"
	"praxihub/backend/internal/api/handler"
	"praxihub/backend/internal/api/router"
	"praxihub/backend/internal/events"
	"praxihub/backend/internal/repository"
	"praxihub/backend/internal/service"
	"praxihub/backend/internal/trigger"
	"praxihub/backend/pkg/ai"
	"praxihub/backend/pkg/blob"
	"praxihub/backend/pkg/database"
	"praxihub/backend/pkg/jwt"
	applogger "praxihub/backend/pkg/logger"
	"praxihub/backend/pkg/mailer"
	"praxihub/backend/pkg/pdf"
	"praxihub/backend/pkg/redis"
)

func main() {
	// 0. .env for local development; missing file is fine
	_ = godotenv.Load()

	// 1. config
	cfg, err := config.Load(os.Getenv("PRAXIHUB_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting praxihub",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. database
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	logger.Info("database connected")

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB failed", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	// 4. redis, optional: token blacklist, rate limits and the shared event bus
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running without blacklist, rate limits and cross-instance events", zap.Error(err))
		rdb = nil
	}

	// 5. jwt
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 6. optional backends
	infra := service.Infra{
		JWT:   jwtMgr,
		Fonts: pdf.NewFontFetcher(cfg.PDF.FontURL, cfg.PDF.FetchTimeout),
	}
	if rdb != nil {
		infra.Tokens = rdb
	}

	model, err := ai.New(rootCtx, &cfg.AI, logger)
	switch {
	case err == nil:
		infra.Model = model
	case errors.Is(err, ai.ErrNotConfigured):
		logger.Warn("no AI API key, contract analysis, matchmaking and chat are disabled")
	default:
		logger.Fatal("init ai model failed", zap.Error(err))
	}

	var store blob.Store
	if cfg.Storage.Bucket != "" {
		oss, err := blob.NewOSS(&cfg.Storage, logger)
		if err != nil {
			logger.Fatal("init object storage failed", zap.Error(err))
		}
		store = oss
		infra.Store = oss
	} else {
		logger.Warn("no storage bucket configured, uploads and contract generation are disabled")
	}

	var sender mailer.Sender
	switch cfg.Mail.Provider {
	case "gmail":
		gmail, err := mailer.NewGmailSender(rootCtx, &cfg.Mail, logger)
		if err != nil {
			logger.Fatal("init gmail sender failed", zap.Error(err))
		}
		sender = gmail
	default:
		sender = mailer.NewLogSender(cfg.Mail.From, logger)
	}

	// 7. event bus
	workers, workCtx := errgroup.WithContext(rootCtx)
	var bus events.Bus
	if rdb != nil {
		redisBus := events.NewRedis(rdb, logger)
		workers.Go(func() error { return redisBus.Run(workCtx) })
		bus = redisBus
	} else {
		bus = events.NewMemory(logger)
	}
	infra.Bus = bus

	// 8. repository -> service -> handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, infra, logger)
	h := handler.NewHandler(cfg, svc)

	// 9. triggers
	fetcher := blob.NewFetcher(store, blob.NewHostAllowlist(cfg.Storage.AllowedHosts), cfg.Storage.FetchTimeout, cfg.Storage.MaxFileSize)
	dispatcher := trigger.NewDispatcher(bus, &cfg.Intake, logger,
		trigger.NewIntake(repo, fetcher, infra.Model, bus, cfg, logger),
		trigger.NewNotify(repo, &cfg.Mail, logger),
	)
	workers.Go(func() error { return dispatcher.Run(workCtx) })

	if cfg.Feature.OutboxEnabled {
		outbox := trigger.NewOutbox(repo.Outbox, sender, &cfg.Mail, logger)
		workers.Go(func() error { return outbox.Run(workCtx) })
	}

	// 10. http
	engine := router.Setup(cfg, h, jwtMgr, rdb, db, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// change streams hold the response open
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 11. graceful shutdown
	<-workCtx.Done()
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}

	stop()
	if err := workers.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("background worker stopped with error", zap.Error(err))
	}

	if closer, ok := infra.Model.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	_ = sqlDB.Close()
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("server stopped")
}
