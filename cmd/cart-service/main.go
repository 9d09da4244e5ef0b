package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shopmesh/shopmesh/internal/auth"
	carthttp "github.com/shopmesh/shopmesh/internal/cart/http"
	"github.com/shopmesh/shopmesh/internal/cart/service"
	"github.com/shopmesh/shopmesh/internal/cart/store"
	"github.com/shopmesh/shopmesh/pkg/httpx"
	"github.com/shopmesh/shopmesh/pkg/logging"
	"github.com/shopmesh/shopmesh/pkg/metrics"
	"github.com/shopmesh/shopmesh/pkg/telemetry"
)

type Config struct {
	HTTPPort        string
	RedisAddr       string
	RedisPassword   string
	CartTTL         time.Duration
	JWTSecret       string
	OTLPEndpoint    string
	LogLevel        string
	LogPretty       bool
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	ttlSeconds, err := strconv.Atoi(getEnv("CART_TTL", "86400"))
	if err != nil || ttlSeconds <= 0 {
		ttlSeconds = 86400
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8081"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CartTTL:         time.Duration(ttlSeconds) * time.Second,
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getEnv("LOG_PRETTY", "") == "true",
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	logger := logging.New("cart-service", cfg.LogLevel, cfg.LogPretty)
	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "cart-service", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis connection failed")
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")

	cartStore := store.NewRedisStore(redisClient, cfg.CartTTL, logger)
	cartService := service.NewCartService(cartStore, logger)
	cartHandler := carthttp.NewCartHandler(cartService)

	m := metrics.New("cart-service")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(m.Middleware)
	r.Use(cors.AllowAll().Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(auth.Middleware([]byte(cfg.JWTSecret), logger))
		cartHandler.Routes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "cart-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("cart service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down cart service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("tracing shutdown failed")
	}
	logger.Info().Msg("cart service stopped")
}
