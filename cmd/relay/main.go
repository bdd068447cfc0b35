package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/relay/core/config"
	"github.com/dmitrymomot/relay/core/gateway"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/relay"
	"github.com/dmitrymomot/relay/core/server"
	redisdb "github.com/dmitrymomot/relay/integration/database/redis"
	redismirror "github.com/dmitrymomot/relay/integration/pubsub/redis"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	// The first argument overrides RELAY_ADDR.
	if len(os.Args) > 1 {
		cfg.Server.Addr = os.Args[1]
	}

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Relay failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Relay stopped")
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)

	hubOpts := []relay.Option{relay.WithLogger(log.With(logger.Component("hub")))}
	var checks []func(context.Context) error

	if cfg.RateLimit.Enabled() {
		store := ratelimiter.NewMemoryStore(ratelimiter.WithLogger(log.With(logger.Component("ratelimiter"))))
		bucket, err := ratelimiter.NewBucket(store, cfg.RateLimit)
		if err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		hubOpts = append(hubOpts, relay.WithLimiter(bucket))
		checks = append(checks, store.Healthcheck)
		eg.Go(store.Run(ctx))
	}

	var mirror *redismirror.Mirror
	if cfg.Redis.Enabled() {
		// Connect handles retries and the initial ping.
		client, err := redisdb.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()

		mirror = redismirror.NewFromConfig(client, cfg.Mirror,
			redismirror.WithLogger(log.With(logger.Component("mirror"))),
		)
		hubOpts = append(hubOpts, relay.WithMirror(mirror))
		checks = append(checks, redisdb.Healthcheck(client))
	}

	hub := relay.NewHubFromConfig(cfg.Hub, hubOpts...)
	// Runs after every listener has stopped.
	defer hub.Close()

	if mirror != nil {
		eg.Go(mirror.Run(ctx, hub))
	}

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log.With(logger.Component("acceptor"))))
	if err != nil {
		return fmt.Errorf("acceptor: %w", err)
	}
	eg.Go(srv.Run(ctx, hub))

	if cfg.Gateway.Enabled() {
		gw, err := gateway.NewFromConfig(cfg.Gateway, hub,
			gateway.WithLogger(log.With(logger.Component("gateway"))),
			gateway.WithChecks(checks...),
		)
		if err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		eg.Go(gw.Run(ctx))
	}

	return eg.Wait()
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{logger.WithDevelopment(cfg.AppName)}
	if cfg.AppEnv == "production" {
		opts = []logger.Option{logger.WithProduction(cfg.AppName)}
	}

	switch cfg.LogFormat {
	case "json":
		opts = append(opts, logger.WithJSONFormatter())
	case "text":
		opts = append(opts, logger.WithTextFormatter())
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	return logger.New(opts...)
}
