package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/contri/internal/auth"
	"github.com/mmynk/contri/internal/cache"
	"github.com/mmynk/contri/internal/config"
	"github.com/mmynk/contri/internal/middleware"
	"github.com/mmynk/contri/internal/service"
	"github.com/mmynk/contri/internal/storage"
	"github.com/mmynk/contri/internal/storage/mongo"
	"github.com/mmynk/contri/internal/storage/sqlite"
	"github.com/mmynk/contri/pkg/api/apiconnect"
	"github.com/mmynk/contri/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.SetupWith(logging.ParseLevel(cfg.LogLevel), logging.ParseFormat(cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	groupCache, closeCache := openCache(ctx, cfg)
	defer closeCache()

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	svcs := service.NewServices(store, groupCache, auth.NewPasswordAuthenticator(store), jwtManager)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	protected := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		limiter.Interceptor(),
		middleware.RequireAuth(jwtManager),
	)
	public := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		limiter.Interceptor(),
		middleware.OptionalAuth(jwtManager),
	)

	router := mux.NewRouter()

	expensePath, expenseHandler := apiconnect.NewExpenseServiceHandler(svcs.Expenses, protected)
	router.PathPrefix(expensePath).Handler(expenseHandler)

	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(svcs.Groups, protected)
	router.PathPrefix(groupPath).Handler(groupHandler)

	authPath, authHandler := apiconnect.NewAuthServiceHandler(svcs.Auth, public)
	router.PathPrefix(authPath).Handler(authHandler)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", healthHandler(store)).Methods(http.MethodGet)

	// h2c serves HTTP/2 without TLS, which gRPC clients of Connect need.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(corsMiddleware(router), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting",
			"address", server.Addr,
			"url", fmt.Sprintf("http://localhost%s", server.Addr),
			"store", cfg.StoreDriver,
			"cache", cfg.RedisAddr != "",
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongo.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.StoreDriver, "database", cfg.MongoDatabase)
		return store, nil
	default:
		store, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", cfg.StoreDriver, "database", cfg.DBPath)
		return store, nil
	}
}

// openCache returns the Redis group cache when configured. An unreachable
// Redis at startup falls back to no caching.
func openCache(ctx context.Context, cfg *config.Config) (cache.GroupCache, func()) {
	if cfg.RedisAddr == "" {
		return cache.Nop{}, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unavailable, group cache disabled", "addr", cfg.RedisAddr, "error", err)
		client.Close()
		return cache.Nop{}, func() {}
	}
	slog.Info("Group cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	return cache.NewRedis(client, cfg.CacheTTL), func() { client.Close() }
}

func healthHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
