// @title                       Client Portal API
// @version                     1.0
// @description                 Client registration, password and Google sign-in, and profile management.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/clientportal/client-service/internal/api"
	"github.com/clientportal/client-service/internal/api/handler"
	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
	"github.com/clientportal/client-service/internal/core/service"
	"github.com/clientportal/client-service/internal/infrastructure/config"
	"github.com/clientportal/client-service/internal/infrastructure/db/mongo"
	"github.com/clientportal/client-service/internal/infrastructure/db/redis"
	"github.com/clientportal/client-service/internal/infrastructure/hashing"
	"github.com/clientportal/client-service/internal/infrastructure/identity/google"
	"github.com/clientportal/client-service/internal/infrastructure/queue"
	"github.com/clientportal/client-service/internal/infrastructure/session"
	"github.com/clientportal/client-service/internal/infrastructure/storage"
	"github.com/clientportal/client-service/internal/metrics"
	"github.com/clientportal/client-service/pkg/logger"
)

const (
	serviceName     = "client-service"
	shutdownTimeout = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log := logger.Get()
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Init(logger.Options{Service: serviceName})
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})

	// --- Storage ---
	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()

	repo := mongo.NewClientRepository(db)
	if err := repo.EnsureIndexes(ctx); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("mongo connected")

	var (
		rdb   *goredis.Client
		cache ports.ProfileCache
	)
	rdb, err = redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, profile cache disabled")
		rdb = nil
	} else {
		defer rdb.Close()
		cache = redis.NewProfileCache(rdb, cfg.Redis.ProfileCacheTTL)
	}

	files, err := storage.NewLocalStorage(cfg.Uploads.Dir)
	if err != nil {
		return err
	}

	// --- Security ---
	pool := queue.NewPool(cfg.Hashing.Workers, logger.Component(log, "hash_pool"))
	pool.OnQueueDepth = func(depth int) { metrics.HashQueueDepth.Set(float64(depth)) }
	// The pool outlives the signal context: requests drained by e.Shutdown
	// still need it, and the deferred Stop runs only after Shutdown returns.
	pool.Start(context.Background())
	defer pool.Stop()

	hasher := hashing.NewBcryptHasher(cfg.Hashing.Cost, pool)

	sessions, err := session.NewJWTIssuer(cfg.Session.Secret, cfg.Session.TTL, session.WithIssuer(cfg.Session.Issuer))
	if err != nil {
		return err
	}

	var (
		verifier ports.IdentityVerifier = disabledVerifier{}
		codes    ports.AuthCodeExchanger
	)
	if cfg.Google.Enabled() {
		gv, err := google.NewVerifier(google.Config{
			ClientID:        cfg.Google.ClientID,
			JWKSURL:         cfg.Google.JWKSURL,
			RefreshInterval: cfg.Google.KeyRefresh,
			FetchTimeout:    cfg.Google.KeyTimeout,
			RetryBackoff:    cfg.Google.RetryBackoff,
			ClockSkew:       cfg.Google.ClockSkew,
		}, logger.Component(log, "google_verifier"))
		if err != nil {
			return err
		}
		defer gv.Close()
		verifier = gv

		if cfg.Google.RedirectEnabled() {
			codes = google.NewCodeExchanger(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
		}
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	// --- Services ---
	clients := service.NewClientService(repo, hasher, files, cache, logger.Component(log, "client_service"))
	auth := service.NewAuthService(clients, hasher, verifier, sessions, logger.Component(log, "auth_service"))

	e := api.NewRouter(api.Dependencies{
		Log:              logger.Component(log, "http"),
		Auth:             auth,
		Clients:          clients,
		Sessions:         sessions,
		Health:           handler.NewHealthHandler(db, rdb),
		GoogleTokenLogin: cfg.Google.Enabled(),
		GoogleCodes:      codes,
		UploadsDir:       files.Dir(),
		MaxRequestSize:   cfg.Uploads.MaxRequestSize,
		MaxAssetBytes:    cfg.Uploads.MaxAssetBytes,
		SecureCookies:    cfg.IsProduction(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

// disabledVerifier rejects every external token when Google sign-in is not
// configured. The route is not registered in that case; this keeps the
// reconciler's dependency non-nil.
type disabledVerifier struct{}

func (disabledVerifier) Verify(context.Context, string) (*domain.ExternalIdentity, error) {
	return nil, domain.ErrVerificationFailed
}
