package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/sparklebrand/brand-api/internal/api"
	"github.com/sparklebrand/brand-api/internal/config"
	"github.com/sparklebrand/brand-api/internal/metrics"
	"github.com/sparklebrand/brand-api/internal/notify"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
	"github.com/sparklebrand/brand-api/internal/service/purchase"
	"github.com/sparklebrand/brand-api/internal/service/status"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
	"github.com/sparklebrand/brand-api/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	ln.Close()
	return nil
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err.Error())
	logger.Sync()
	os.Exit(1)
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.ShouldRedact())
	defer logger.Sync()

	host := cfg.Server.GetHost()
	if err := checkPortAvailable(host, cfg.Server.Port); err != nil {
		fatal("pre-flight check failed", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err.Error())
		}
	}

	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	backend, err := storage.Open(openCtx, cfg.Storage)
	openCancel()
	if err != nil {
		fatal("failed to initialize storage", err)
	}
	logger.Info("storage ready", "type", backend.Type)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		fatal("failed to register metrics", err)
	}

	notifier, err := notify.New(ctx, cfg.Notify, rdb, rec)
	if err != nil {
		fatal("failed to initialize notifications", err)
	}
	notifier.Start(ctx)
	logger.Info("notifications ready", "mode", cfg.Notify.Mode, "sink", cfg.Notify.Sink, "queue", cfg.Notify.Queue)

	var s3Client *s3.Client
	if cfg.Notify.DeadLetterBucket != "" {
		s3Client, err = notify.DeadLetterClient(ctx, cfg.Notify)
		if err != nil {
			logger.Warn("S3 health check disabled", "error", err.Error())
		}
	}
	var s3Health api.HeadBucketAPI
	if s3Client != nil {
		s3Health = s3Client
	}

	handlers := api.NewHandlers(
		subscription.NewService(backend.Subscribers, notifier, subscription.WithRecorder(rec)),
		purchase.NewService(backend.Purchases, notifier, cfg.Notify.OwnerEmail, purchase.WithRecorder(rec)),
		status.NewService(backend.StatusChecks),
		cfg.Notify.OwnerEmail,
	)
	router := api.NewRouter(handlers, api.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		Health:      api.NewHealthChecker(backend, rdb, s3Health, cfg.Notify.DeadLetterBucket),
		Metrics:     rec,
	})
	server := api.NewServer(cfg.Server, router)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, cfg.Server.Port)
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err.Error())
	}
	if err := notifier.Close(shutdownCtx); err != nil {
		logger.Error("notification drain incomplete", "error", err.Error())
	}
	cancel()
	if err := backend.Close(shutdownCtx); err != nil {
		logger.Error("storage close error", "error", err.Error())
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("server stopped")
}
