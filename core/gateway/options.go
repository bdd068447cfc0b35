package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithShutdownTimeout bounds Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.shutdown = d
		}
	}
}

// WithReadHeaderTimeout bounds reading request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.readHeaderTimeout = d
		}
	}
}

// WithChecks adds readiness checks run by GET /health/ready.
func WithChecks(checks ...func(context.Context) error) Option {
	return func(g *Gateway) {
		g.checks = append(g.checks, checks...)
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins.
// "*" accepts any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(g *Gateway) {
		if len(origins) == 0 {
			return
		}
		if slices.Contains(origins, "*") {
			g.upgrader.CheckOrigin = func(*http.Request) bool { return true }
			return
		}
		g.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
}
