package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/config"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/handler"
	"github.com/boddenberg/zillo-assist-go/internal/infra/cache"
	"github.com/boddenberg/zillo-assist-go/internal/infra/client"
	"github.com/boddenberg/zillo-assist-go/internal/infra/kv"
	"github.com/boddenberg/zillo-assist-go/internal/infra/memstore"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/infra/postgres"
	"github.com/boddenberg/zillo-assist-go/internal/infra/resilience"
	"github.com/boddenberg/zillo-assist-go/internal/infra/supabase"
	"github.com/boddenberg/zillo-assist-go/internal/login"
	"github.com/boddenberg/zillo-assist-go/internal/port"
	"github.com/boddenberg/zillo-assist-go/internal/service"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_supabase", cfg.UseSupabase),
		zap.Bool("auth_api", cfg.AuthAPIURL != ""),
		zap.Bool("database", cfg.DatabaseURL != ""),
		zap.String("session_db", cfg.SessionDBPath),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("company_cache_ttl", cfg.CompanyCacheTTL),
		zap.Duration("session_store_ttl", cfg.SessionStoreTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
	)

	ctx := context.Background()

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "zillo-assist-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var checks []handler.HealthCheck

	// --- Remote identity backends, in fallback order ---
	var remotes []service.Backend
	var supabaseClient *supabase.Client
	if cfg.UseSupabase && cfg.SupabaseURL != "" {
		logger.Info("using Supabase as primary backend", zap.String("supabase_url", cfg.SupabaseURL))
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase", logger),
			resilienceCfg,
			logger,
		)
		remotes = append(remotes, service.Backend{Name: "supabase", Backend: supabaseClient})
		checks = append(checks, handler.HealthCheck{Name: "supabase", Ping: supabaseClient.Ping})
	}
	if cfg.AuthAPIURL != "" {
		logger.Info("using REST auth fallback", zap.String("auth_api_url", cfg.AuthAPIURL))
		authAPI := client.NewAuthAPIClient(httpClient, cfg.AuthAPIURL, resilience.NewCircuitBreaker("auth-api", logger), resilienceCfg)
		remotes = append(remotes, service.Backend{Name: "auth-api", Backend: authAPI})
	}
	if len(remotes) == 0 {
		logger.Warn("no remote auth backend configured, logins resolve against the local roster only")
	}

	// --- Served account store (REST fallback + directory without Supabase) ---
	// Without a database the served store is the roster itself, so users
	// added from the CRM can log in through the local fallback.
	rosterStore := memstore.NewRoster()
	var accounts port.AccountStore
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			logger.Fatal("failed to migrate postgres", zap.Error(err))
		}
		pgStore := postgres.NewAccountStore(pool, bcrypt.DefaultCost)
		accounts = pgStore
		checks = append(checks, handler.HealthCheck{Name: "postgres", Ping: pgStore.Ping})
		logger.Info("account store: postgres")
	} else {
		accounts = rosterStore
		logger.Warn("account store: DATABASE_URL not set, serving the local roster from memory")
	}

	// --- Client sessions ---
	sessionDB, err := kv.OpenSQLite(ctx, cfg.SessionDBPath, logger)
	if err != nil {
		logger.Fatal("failed to open session store", zap.Error(err))
	}
	defer sessionDB.Close()
	checks = append(checks, handler.HealthCheck{Name: "sessions", Ping: sessionDB.Ping})

	sessionStores := cache.New[*session.Store](cfg.SessionStoreTTL)
	defer sessionStores.Stop()

	sessions := session.NewRegistry(sessionDB, sessionStores,
		session.WithLogger(logger),
		session.WithExpiryHook(metrics.IncrSessionExpired),
	)

	// --- Services ---
	roster := service.NewAccountIdentity(rosterStore, cfg.JWTSecret, cfg.JWTTTL, logger)
	served := service.NewAccountIdentity(accounts, cfg.JWTSecret, cfg.JWTTTL, logger)

	companyCache := cache.New[*domain.IdentifyResult](cfg.CompanyCacheTTL)
	defer companyCache.Stop()

	authClient := service.NewAuthClient(
		remotes,
		roster,
		companyCache,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics,
		logger,
	)

	var directoryBackend port.DirectoryBackend = accounts
	if supabaseClient != nil {
		directoryBackend = supabaseClient
	}
	directory := service.NewDirectoryService(directoryBackend, logger)

	flows := cache.New[*login.Flow](cfg.LoginFlowTTL)
	defer flows.Stop()

	// --- Router ---
	router := handler.NewRouter(handler.Dependencies{
		Auth:          authClient,
		Identity:      served,
		Directory:     directory,
		Sessions:      sessions,
		Flows:         flows,
		Metrics:       metrics,
		Checks:        checks,
		RedirectDelay: cfg.SuccessRedirectDelay,
		SecureCookies: cfg.SecureCookies,
		MaxInFlight:   cfg.MaxInFlight,
		Logger:        logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
