package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"security-service/internal/auth"
	"security-service/internal/config"
	"security-service/internal/csrf"
	"security-service/internal/db"
	"security-service/internal/directory"
	"security-service/internal/maintenance"
	"security-service/internal/observability"
)

type Options struct {
	LoadDotEnv bool
	// RunMigrations forces migrations on regardless of RUN_MIGRATIONS_ON_STARTUP.
	RunMigrations bool
}

type Runtime struct {
	Config  config.Config
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(options.LoadDotEnv)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfigFromEnv())

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	database.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	database.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	database.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations || cfg.RunMigrationsOnStart {
		if err := db.RunMigrations(ctx, database, logger); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	users := directory.NewRepository(database)
	if err := users.BootstrapFromEnv(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	closers := []func() error{database.Close}

	var claims auth.ClaimStore = users
	if cfg.RedisURL != "" {
		redisClaims, err := directory.NewRedisClaims(cfg.RedisURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("init redis claims: %w", err)
		}
		claims = redisClaims
		closers = append(closers, redisClaims.Close)
		logger.Info("claim_store_selected", map[string]any{"backend": "redis"})
	}

	csrfTokens, err := csrf.NewService(cfg.CSRF.Secret, cfg.CSRF.Expiration)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init csrf: %w", err)
	}

	tokens := auth.NewRepository(database)
	authService := auth.NewService(auth.Dependencies{
		AuthTokens: tokens,
		APITokens:  tokens,
		Users:      users,
		Providers:  users,
		Claims:     claims,
		Passwords:  directory.BcryptComparator{},
		Codes:      auth.TOTPVerifier{},
		Logger:     logger,
	})

	handler := routes(cfg, database, logger, authService, tokens, csrfTokens)

	return &Runtime{
		Config:  cfg,
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			_ = logger.Sync()
			var firstErr error
			for _, closeFn := range closers {
				if err := closeFn(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		},
	}, nil
}

func routes(
	cfg config.Config,
	database *sql.DB,
	logger *observability.Logger,
	authService *auth.Service,
	tokens *auth.Repository,
	csrfTokens *csrf.Service,
) http.Handler {
	authHandler := auth.NewHandler(authService, logger)
	csrfHandler := csrf.NewHandler(csrfTokens, auth.UserIDFromRequest)
	cleanupHandler := maintenance.NewCleanupHandler(tokens, logger, cfg.CronSecret, cfg.AuthTokenRetention, cfg.CleanupBatchSize)
	loginLimiter := auth.NewLoginRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow)

	admin := func(h http.HandlerFunc) http.Handler {
		return auth.AdminMiddleware(cfg.AdminJWTSecret, h)
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /security/auth/{provider}", authHandler.Initiate)
	api.Handle("POST /security/auth/local/check/{token}", loginLimiter.Middleware(http.HandlerFunc(authHandler.CheckLocal)))
	api.Handle("POST /security/auth/local/2fa/{token}", loginLimiter.Middleware(http.HandlerFunc(authHandler.CheckTwoFactor)))
	api.HandleFunc("POST /security/auth/token/{token}", authHandler.Exchange)
	api.HandleFunc("DELETE /security/auth/token", authHandler.Revoke)
	api.Handle("GET /security/csrf/token", auth.RequireAuthenticated(http.HandlerFunc(csrfHandler.Token)))
	api.Handle("GET /security/admin/auth-tokens", admin(authHandler.List))
	api.Handle("DELETE /security/admin/auth-tokens", admin(authHandler.DeleteMany))
	api.Handle("POST /security/admin/purge", admin(authHandler.Purge))

	prefix := strings.TrimSuffix(cfg.APIPrefix, "/")

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", http.StripPrefix(prefix, api))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	guard := csrf.NewOriginGuard(csrf.GuardConfig{
		Strict:      cfg.IsProduction(),
		APIPrefix:   prefix,
		SwaggerPath: cfg.SwaggerPath,
		Origins:     cfg.CORSOrigins,
		ExemptPaths: cfg.CSRF.ExemptPaths,
	}, csrfTokens, auth.UserIDFromRequest)

	var handler http.Handler = guard.Middleware(mux)
	handler = auth.APITokenMiddleware(authService, handler)
	handler = observability.RequestLoggingMiddleware(logger, handler)
	handler = observability.RequestContextMiddleware(handler)
	return observability.RecoverMiddleware(logger, handler)
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
