// Command server runs the 99minutos auth API.
//
// @title                       99minutos Auth API
// @version                     1.0
// @description                 Email/password and CPF login with rotating refresh tokens.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
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

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/99minutos/auth-service/docs"
	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/ratelimit"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/core/token"
	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/infrastructure/queue"
	"github.com/99minutos/auth-service/internal/infrastructure/secrets"
	"github.com/99minutos/auth-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log := logger.Get()
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
	cfg := config.Load(bootLog)

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.IsDevelopment(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Signing material ---
	secretProvider := secrets.NewCachedProvider(secrets.NewEnvSource(nil))
	material, err := secretProvider.SigningMaterial(ctx)
	if err != nil {
		return err
	}
	tokens, err := token.NewService(material)
	if err != nil {
		return err
	}

	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:           cfg.Mongo.URI,
		Database:      cfg.Mongo.Database,
		EnsureIndexes: cfg.Mongo.EnsureIndexes,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	// --- Rate limiting ---
	var (
		limiter ports.RateLimiter
		rdb     *goredis.Client
	)
	limitCfg := ratelimit.Config{
		Window:      cfg.RateLimit.Window,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Block:       cfg.RateLimit.Block,
	}
	switch cfg.RateLimit.Backend {
	case config.RateLimitRedis:
		rdb, err = redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Timeout:  cfg.Redis.Timeout,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redis.NewRateLimiter(rdb, limitCfg, redis.WithKeyPrefix(cfg.Redis.KeyPrefix))
	default:
		mem := ratelimit.New(limitCfg)
		go mem.RunSweeper(ctx, cfg.RateLimit.SweepInterval, log, func(removed int) {
			metrics.RateLimitSweptTotal.Add(float64(removed))
		})
		limiter = mem
	}

	// --- Core ---
	identities := mongo.NewIdentityRepository(db)
	verifier, err := service.NewCredentialVerifier(identities, cfg.BcryptCost, log)
	if err != nil {
		return err
	}

	// Audit workers outlive the signal context: requests still finishing
	// during e.Shutdown record events, and they must be persisted.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	audit := queue.NewDispatcher(cfg.AuditWorkers, mongo.NewAuditRepository(db), log)
	audit.Start(auditCtx)

	authService := service.NewAuthService(
		identities,
		mongo.NewRefreshTokenRepository(db),
		tokens,
		limiter,
		verifier,
		log,
		service.WithAuditRecorder(audit),
		service.WithCPFRateLimit(cfg.RateLimit.CPFLogin),
	)

	// --- HTTP ---
	ipExtractor, err := api.NewIPExtractor(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	e := api.NewRouter(api.Dependencies{
		AuthService: authService,
		Verifier:    tokens,
		Mongo:       db,
		Redis:       rdb,
		Log:         log,
		IPExtractor: ipExtractor,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("rate_limit_backend", cfg.RateLimit.Backend).
			Msg("auth service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := e.Shutdown(shutdownCtx)

	stopAudit()
	audit.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("http shutdown: %w", shutdownErr)
	}
	return nil
}
