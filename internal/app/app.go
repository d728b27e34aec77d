// Package app wires configuration, backing stores, services, the return
// poll worker and the HTTP server into one process.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/greyfinance/ach-engine/internal/api"
	"github.com/greyfinance/ach-engine/internal/api/middleware"
	"github.com/greyfinance/ach-engine/internal/config"
	"github.com/greyfinance/ach-engine/internal/crypto"
	"github.com/greyfinance/ach-engine/internal/db"
	"github.com/greyfinance/ach-engine/internal/idempotency"
	"github.com/greyfinance/ach-engine/internal/lock"
	"github.com/greyfinance/ach-engine/internal/nacha"
	"github.com/greyfinance/ach-engine/internal/observability"
	"github.com/greyfinance/ach-engine/internal/orders"
	"github.com/greyfinance/ach-engine/internal/repository"
	"github.com/greyfinance/ach-engine/internal/service"
	"github.com/greyfinance/ach-engine/internal/transport"
	"github.com/greyfinance/ach-engine/internal/worker"
)

// Run bootstraps the engine and blocks until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, pool, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := newRedis(cfg)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	locker, err := newLocker(cfg, redisClient)
	if err != nil {
		return err
	}

	cipher, err := crypto.NewFieldCipher(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("init field cipher: %w", err)
	}

	client, err := newTransport(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	fileParams := nacha.FileParams{
		ImmediateDestination: cfg.ImmediateDestination,
		ImmediateOrigin:      cfg.ImmediateOrigin,
		DestinationName:      cfg.DestinationName,
		OriginName:           cfg.OriginName,
		CompanyName:          cfg.CompanyName,
		CompanyID:            cfg.CompanyID,
		ODFIRouting:          cfg.ODFIRouting,
		SECCode:              cfg.SECCode,
		EntryDescription:     cfg.EntryDescription,
		FileIDModifier:       cfg.FileIDModifier,
	}
	if err := fileParams.Validate(); err != nil {
		return fmt.Errorf("validate file params: %w", err)
	}

	// The mock gateway stands in for the order management system until its
	// API client ships.
	gateway := orders.NewMockGateway()

	audit := service.NewAuditService(store)
	assembler := service.NewAssemblyService(cipher)
	delivery := service.NewDeliveryService(store, client, audit, service.DeliveryConfig{
		SpoolDir:       cfg.SpoolDir,
		RemoteDir:      cfg.RemoteOutboundDir,
		MaxAttempts:    cfg.UploadMaxAttempts,
		BackoffBase:    cfg.UploadBackoffBase,
		BackoffCap:     cfg.UploadBackoffCap,
		AttemptTimeout: cfg.UploadAttemptTimeout,
	})
	recon := service.NewReconciliationService(store, client, gateway, service.ReconciliationConfig{
		ReturnDir:        cfg.RemoteReturnDir,
		SettlementWindow: cfg.SettlementWindow,
	})
	engine := service.NewEngine(store, locker, assembler, delivery, gateway, fileParams, cfg.BatchLockTTL)

	returnWorker := worker.NewReturnPollWorker(recon).WithInterval(cfg.ReturnPollInterval)
	stopWorker := returnWorker.Run(ctx)
	logger.Info("return poll worker started", zap.Duration("interval", cfg.ReturnPollInterval))

	var idemStore *idempotency.Store
	if redisClient != nil {
		idemStore = idempotency.NewStore(redisClient, 24*time.Hour)
	}

	router := api.NewRouter(cfg, logger, pool, redisCmdable(redisClient), engine, delivery, recon, idemStore)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping return poll worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (repository.Store, *pgxpool.Pool, error) {
	switch cfg.StoreDriver {
	case "memory":
		return repository.NewMemoryStore(), nil, nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return repository.NewPostgresStore(pool), pool, nil
	}
}

func newLocker(cfg *config.Config, redisClient *redis.Client) (lock.Locker, error) {
	switch cfg.LockDriver {
	case "memory":
		return lock.NewMemoryLocker(), nil
	default:
		if redisClient == nil {
			return nil, fmt.Errorf("LOCK_DRIVER is redis but redis is not configured")
		}
		return lock.NewRedisLocker(redisClient), nil
	}
}

func newTransport(cfg *config.Config) (transport.Client, error) {
	switch cfg.TransportDriver {
	case "dir":
		client, err := transport.NewDirClient(cfg.LocalTransport)
		if err != nil {
			return nil, fmt.Errorf("init dir transport: %w", err)
		}
		return client, nil
	default:
		client, err := transport.DialSFTP(transport.SFTPConfig{
			Host:           cfg.SFTPHost,
			Port:           cfg.SFTPPort,
			User:           cfg.SFTPUser,
			Password:       cfg.SFTPPassword,
			PrivateKeyFile: cfg.SFTPKeyFile,
			HostKeyFile:    cfg.SFTPHostKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dial sftp: %w", err)
		}
		return client, nil
	}
}

// newRedis connects only when the redis lock driver is configured; the
// idempotency cache rides along on the same client.
func newRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.LockDriver != "redis" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func redisCmdable(client *redis.Client) redis.Cmdable {
	if client == nil {
		return nil
	}
	return client
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
