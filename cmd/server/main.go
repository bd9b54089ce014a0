// @title                       Auth API
// @version                     1.0
// @description                 Identity and session service: password and Sign in with Apple
// @description                 authentication, identity linking and recent-authentication gates.
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

	"github.com/rs/zerolog"

	_ "github.com/thibou/auth-api/docs"
	"github.com/thibou/auth-api/internal/api"
	"github.com/thibou/auth-api/internal/api/handler"
	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
	"github.com/thibou/auth-api/internal/core/service"
	"github.com/thibou/auth-api/internal/infrastructure/config"
	"github.com/thibou/auth-api/internal/infrastructure/db/memory"
	mongodb "github.com/thibou/auth-api/internal/infrastructure/db/mongo"
	redisdb "github.com/thibou/auth-api/internal/infrastructure/db/redis"
	"github.com/thibou/auth-api/internal/infrastructure/password"
	"github.com/thibou/auth-api/internal/infrastructure/queue"
	"github.com/thibou/auth-api/internal/infrastructure/sso"
	"github.com/thibou/auth-api/internal/infrastructure/sso/apple"
	"github.com/thibou/auth-api/pkg/logger"
)

const (
	serviceName     = "auth-api"
	shutdownTimeout = 10 * time.Second
	auditWorkers    = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	checks := make(map[string]handler.DependencyCheck)

	// --- Storage ---
	var (
		users  ports.UserRepository
		events ports.AuthEventRepository
	)
	switch cfg.StoreDriver {
	case "mongo":
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()

		repo := mongodb.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
		users = repo
		events = mongodb.NewAuthEventRepository(db)
		checks["mongodb"] = handler.MongoCheck(db)
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo user store ready")
	case "memory":
		users = memory.NewUserRepository()
		log.Warn().Msg("using in-memory user store, data is lost on restart")
	}

	// --- Rate limiting ---
	var limiter ports.RateLimiter
	if cfg.RateLimit.Enabled {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		limiter = redisdb.NewRateLimiter(rdb, cfg.RateLimit.Window)
		checks["redis"] = handler.RedisCheck(rdb)
	}

	// --- Audit trail ---
	var audit ports.AuditRecorder = ports.NopAuditRecorder{}
	if events != nil {
		dispatcher := queue.NewDispatcher(auditWorkers, events, logger.Component("audit"))
		dispatcher.Start(context.WithoutCancel(ctx))
		defer dispatcher.Close()
		audit = dispatcher
	}

	// --- Security primitives ---
	hasher, err := password.New(password.Config{
		MemoryKB:    cfg.Argon2.MemoryKB,
		Time:        cfg.Argon2.Time,
		Parallelism: cfg.Argon2.Parallelism,
	})
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	providers := sso.NewRegistry()
	if cfg.Apple.Enabled() {
		providers.Register(domain.ProviderApple, apple.NewVerifier(apple.Config{
			ClientID:    cfg.Apple.ClientID,
			ClientIDIOS: cfg.Apple.ClientIDIOS,
			KeysURL:     cfg.Apple.KeysURL,
			Timeout:     cfg.Apple.VerifyTimeout,
		}))
	} else {
		log.Warn().Msg("APPLE_CLIENT_ID not set, Sign in with Apple is disabled")
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:    cfg.Token.Secret,
		Issuer:    cfg.Token.Issuer,
		UserTTL:   cfg.Token.UserTTL,
		SystemTTL: cfg.Token.SystemTTL,
	})

	// --- Services ---
	identities := service.NewIdentityService(users, hasher, audit, logger.Component("identity"))
	authService := service.NewAuthService(service.AuthDeps{
		Users:      users,
		Identities: identities,
		Hasher:     hasher,
		Verifier:   providers,
		Tokens:     tokens,
		Audit:      audit,
		SystemKey:  cfg.Token.SystemKey,
	}, logger.Component("auth"))

	e := api.NewRouter(api.Deps{
		Auth:    authService,
		Links:   service.NewLinkService(identities, providers, providers, logger.Component("sso")),
		Users:   service.NewUserService(users, hasher, audit, logger.Component("user")),
		Tokens:  tokens,
		StepUp:  service.NewStepUpGate(cfg.Token.RecentAuthWindow),
		Limiter: limiter,
		Health:  checks,
		Log:     logger.Component("http"),
	})

	return serve(ctx, e, ":"+cfg.Port, log)
}

func serve(ctx context.Context, h http.Handler, addr string, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
