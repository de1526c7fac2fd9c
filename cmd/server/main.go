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
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"gstrecon/internal/cache/noop"
	rediscache "gstrecon/internal/cache/redis"
	"gstrecon/internal/config"
	noopemail "gstrecon/internal/email/noop"
	"gstrecon/internal/email/ses"
	"gstrecon/internal/handler"
	"gstrecon/internal/logger"
	"gstrecon/internal/metrics"
	"gstrecon/internal/port"
	"gstrecon/internal/reconcile"
	"gstrecon/internal/repository/postgres"
	"gstrecon/internal/router"
	"gstrecon/internal/service"
	s3storage "gstrecon/internal/storage/s3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logrus.Fatal(err)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Log)

	engineCfg, err := cfg.Recon.Engine()
	if err != nil {
		return fmt.Errorf("invalid reconciliation config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}

	// Run cache: Redis when configured, in-process otherwise.
	var runCache port.RunCache
	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.NewClient(context.Background(), &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		runCache = rediscache.NewRunCache(rdb, &cfg.Redis)
		checks["redis"] = redisCheck(rdb)
		log.WithField("addr", cfg.Redis.Addr).Info("redis run cache enabled")
	} else {
		runCache = noop.NewRunCache()
		log.Warn("redis not configured; identical batches are only deduplicated per process")
	}

	var archive port.ReportArchive
	if cfg.S3.Bucket != "" {
		archive, err = s3storage.NewReportArchive(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize report archive: %w", err)
		}
		log.WithField("bucket", cfg.S3.Bucket).Info("report archiving enabled")
	}

	var emailer port.EmailSender
	switch cfg.Email.Provider {
	case "ses":
		emailer, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	default:
		emailer = noopemail.NewNoopSender(log)
	}

	m := metrics.New()

	// Initialize services
	reconSvc := service.NewReconciliationService(
		reconcile.NewEngine(engineCfg),
		postgres.NewRunRepo(db),
		runCache,
		archive,
		emailer,
		m,
		log,
		service.Options{
			MaxRecords:      cfg.Recon.MaxRecords,
			RunTimeout:      cfg.Recon.RunTimeout,
			AlertRecipients: cfg.Email.AlertRecipients,
			PresignExpiry:   time.Duration(cfg.S3.PresignExpiry) * time.Second,
		},
	)

	// Initialize handlers
	reconH := handler.NewReconciliationHandler(reconSvc)
	healthH := handler.NewHealthHandler(checks)

	r := router.Setup(cfg, log, m, reconH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func redisCheck(rdb *goredis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
