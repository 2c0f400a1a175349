package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gero-pdv/caisse/internal/backend"
	"github.com/gero-pdv/caisse/internal/config"
	"github.com/gero-pdv/caisse/internal/obs"
	"github.com/gero-pdv/caisse/internal/offline"
	"github.com/gero-pdv/caisse/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("caisse", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	replayer := &offline.Replayer{
		Backend: &backend.Client{
			BaseURL: cfg.BackendBaseURL,
			Token:   cfg.BackendToken,
			HTTP: resilience.Client{
				HTTP:        &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
				MaxAttempts: cfg.RetryMaxAttempts,
				BaseBackoff: cfg.RetryBase,
				Jitter:      cfg.RetryJitterPercent,
				Timeout:     cfg.BackendTimeout,
			},
		},
		Logger: logger,
	}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{offline.QueueName: 1},
	})

	logger.Info().Msg("worker starting")
	if err := srv.Start(replayer.Mux()); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
