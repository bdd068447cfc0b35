package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/relay"
)

// Relay is the connection handler behind the gateway.
type Relay interface {
	ServeConn(ctx context.Context, conn net.Conn) error
	Stats() relay.Stats
}

// Gateway serves the relay line protocol over WebSocket next to health and
// stats endpoints. Safe for concurrent use.
type Gateway struct {
	mu                sync.Mutex
	addr              string
	relay             Relay
	logger            *slog.Logger
	upgrader          websocket.Upgrader
	checks            []func(context.Context) error
	shutdown          time.Duration
	readHeaderTimeout time.Duration
	server            *http.Server
	running           bool

	// Hijacked sockets are invisible to http.Server.Shutdown, so they are
	// tracked and cancelled here.
	connCtx    context.Context
	cancelConn context.CancelFunc
	conns      sync.WaitGroup
	stopping   bool
}

// New creates a gateway listening on addr that hands WebSocket streams to r.
func New(addr string, r Relay, opts ...Option) *Gateway {
	g := &Gateway{
		addr:   addr,
		relay:  r,
		logger: logger.Nop(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		shutdown:          10 * time.Second,
		readHeaderTimeout: 10 * time.Second,
	}
	g.connCtx, g.cancelConn = context.WithCancel(context.Background())

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewFromConfig creates a gateway from cfg. Options override config values.
func NewFromConfig(cfg Config, r Relay, opts ...Option) (*Gateway, error) {
	if !cfg.Enabled() {
		return nil, ErrMissingAddress
	}
	base := []Option{
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithReadHeaderTimeout(cfg.ReadHeaderTimeout),
		WithAllowedOrigins(cfg.AllowedOrigins...),
	}
	return New(cfg.Addr, r, append(base, opts...)...), nil
}

// Start serves HTTP until ctx is canceled or the listener fails.
// Returns ctx.Err() when the context is canceled; use Stop for graceful shutdown.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return ErrServerAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		g.mu.Unlock()
		return err
	}

	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("gateway listen %s: %w", g.addr, err)
	}

	g.server = &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: g.readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	srv := g.server
	g.running = true
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "gateway listening", logger.Addr(ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		g.mu.Lock()
		g.running = false
		g.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the HTTP server down, closes every WebSocket stream, and waits
// up to the shutdown timeout for them to finish. Upgrades arriving after
// Stop are refused with 503.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	g.stopping = true
	if !g.running || g.server == nil {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	srv := g.server
	g.mu.Unlock()

	g.logger.Info("shutting down gateway", slog.Duration("timeout", g.shutdown))

	ctx, cancel := context.WithTimeout(context.Background(), g.shutdown)
	defer cancel()

	err := srv.Shutdown(ctx)
	g.cancelConn()

	done := make(chan struct{})
	go func() {
		g.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ErrShutdownTimeout
	}

	if err != nil {
		g.logger.Error("gateway shutdown error", logger.Error(err))
		return err
	}
	g.logger.Info("gateway shutdown complete")
	return nil
}

// Run provides errgroup compatibility for coordinated lifecycle management.
func (g *Gateway) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- g.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			if stopErr := g.Stop(); stopErr != nil {
				g.logger.Error("failed to stop gateway during context cancellation", logger.Error(stopErr))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if stopErr := g.Stop(); stopErr != nil {
					g.logger.Error("failed to stop gateway during context cancellation", logger.Error(stopErr))
				}
				return nil
			}
			return err
		}
	}
}

// serveWS upgrades the request and runs the relay protocol over the socket
// until either side closes it.
func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	// Registered before the hijack so Stop cannot miss it.
	g.mu.Lock()
	if g.stopping {
		g.mu.Unlock()
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	g.conns.Add(1)
	g.mu.Unlock()
	defer g.conns.Done()

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		g.logger.DebugContext(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}

	log := g.logger.With(logger.Transport("websocket"), logger.RemoteAddr(r.RemoteAddr))
	start := time.Now()
	log.DebugContext(r.Context(), "websocket connected")

	if err := g.relay.ServeConn(g.connCtx, newWSConn(ws)); err != nil {
		log.InfoContext(r.Context(), "websocket closed with error", logger.Error(err), logger.Elapsed(start))
		return
	}
	log.DebugContext(r.Context(), "websocket closed", logger.Elapsed(start))
}
