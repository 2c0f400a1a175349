package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/cart"
	"github.com/gero-pdv/caisse/internal/catalog"
	"github.com/gero-pdv/caisse/internal/checkout"
	"github.com/gero-pdv/caisse/internal/clients"
	"github.com/gero-pdv/caisse/internal/config"
	"github.com/gero-pdv/caisse/internal/health"
	"github.com/gero-pdv/caisse/internal/obs"
	"github.com/gero-pdv/caisse/internal/offline"
	"github.com/gero-pdv/caisse/internal/resilience"
	"github.com/gero-pdv/caisse/internal/settings"

	validator "github.com/go-playground/validator/v10"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics("caisse", nil)

	if cfg.TracingEnabled {
		stop, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "caisse-api",
			Endpoint:      cfg.TracingEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := stop(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for queue")
	}
	queueClient := asynq.NewClient(redisConn)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close queue client")
		}
	}()

	backendClient := &backend.Client{
		BaseURL: cfg.BackendBaseURL,
		Token:   cfg.BackendToken,
		HTTP: resilience.Client{
			HTTP:        &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(cfg.BreakerMaxFailures, cfg.BreakerOpenFor),
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBase,
			Jitter:      cfg.RetryJitterPercent,
			Timeout:     cfg.BackendTimeout,
		},
	}

	sessions := cart.NewRegistry(cart.NewStore(redisClient, cfg.SessionTTL))
	flags := &settings.Service{
		Client: redisClient,
		Defaults: settings.Features{
			TicketPrinting:     cfg.TicketPrintingDefault,
			AutoTicketPrinting: cfg.AutoTicketPrintingDefault,
			PriceEditing:       cfg.PriceEditingDefault,
			Reductions:         cfg.ReductionsDefault,
		},
	}

	cartHandler := &cart.Handler{Sessions: sessions, Flags: flags, Logger: logger}
	checkoutHandler := &checkout.Handler{
		Service: &checkout.Service{
			Backend:  backendClient,
			Sessions: sessions,
			Offline: &offline.Queue{
				Client:    queueClient,
				MaxRetry:  cfg.OfflineMaxRetry,
				Retention: cfg.OfflineRetention,
			},
			Logger:   logger,
			Validate: validator.New(),
		},
		Sessions: sessions,
	}
	catalogHandler := &catalog.Handler{Service: &catalog.Service{
		Backend: backendClient,
		Cache:   catalog.NewCache(redisClient, cfg.CatalogTTL),
		Logger:  logger,
	}}
	clientsHandler := &clients.Handler{Service: &clients.Service{Backend: backendClient}}
	settingsHandler := &settings.Handler{Service: flags}

	httpMetrics := obs.NewHTTPMetrics("caisse", nil)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(httpMetrics.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimiter(cfg, redisClient, logger))

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker:        readinessChecker{redis: redisClient, backendURL: cfg.BackendBaseURL},
		RedisTimeout:   300 * time.Millisecond,
		BackendTimeout: 500 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		cartHandler.Routes(v)
		checkoutHandler.Routes(v)
		catalogHandler.Routes(v)
		clientsHandler.Routes(v)
		settingsHandler.Routes(v)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-runCtx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server shutdown complete")
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) func(http.Handler) http.Handler {
	store, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
		Prefix: "caisse:ratelimit",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limit store")
	}
	rate := limiter.Rate{Period: time.Minute, Limit: int64(cfg.RateLimitPerMinute)}
	middleware := limiterstdlib.NewMiddleware(limiter.New(store, rate))
	return middleware.Handler
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis      *redis.Client
	backendURL string
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func (c readinessChecker) PingBackend(ctx context.Context, timeout time.Duration) error {
	if c.backendURL == "" {
		return errors.New("backend not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.backendURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
