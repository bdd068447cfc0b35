package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/relay/core/client"
	"github.com/dmitrymomot/relay/core/config"
	"github.com/dmitrymomot/relay/core/logger"
)

type Config struct {
	Addr     string `env:"RELAY_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)
	if len(os.Args) > 1 {
		cfg.Addr = os.Args[1]
	}

	log := logger.New(
		logger.WithOutput(os.Stderr),
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
	)

	c, err := client.Dial(ctx, cfg.Addr, client.WithLogger(log))
	if err != nil {
		log.Error("Failed to connect", logger.Addr(cfg.Addr), logger.Error(err))
		os.Exit(1)
	}

	fmt.Fprintln(os.Stderr, client.Usage)

	if err := c.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error("Connection failed", logger.Error(err))
		os.Exit(1)
	}
}
