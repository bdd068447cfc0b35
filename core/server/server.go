package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dmitrymomot/relay/core/logger"
)

// Handler serves one accepted connection. It owns conn and returns when the
// connection is finished; ctx is cancelled when the server stops.
type Handler interface {
	ServeConn(ctx context.Context, conn net.Conn) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn) error

// ServeConn calls f(ctx, conn).
func (f HandlerFunc) ServeConn(ctx context.Context, conn net.Conn) error {
	return f(ctx, conn)
}

// Server accepts TCP connections and runs a Handler for each one in its own
// goroutine. Safe for concurrent use.
type Server struct {
	mu        sync.RWMutex
	addr      string
	listener  net.Listener
	logger    *slog.Logger
	shutdown  time.Duration
	tlsConfig *tls.Config
	running   bool
	cancel    context.CancelFunc
	conns     sync.WaitGroup
}

// New creates a new Server with the given address and options.
// Defaults to a 10-second shutdown timeout and a no-op logger.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		logger:   logger.Nop(),
		shutdown: DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listener and accepts connections until Stop is called or
// ctx is canceled. A bind failure is returned immediately wrapped in
// ErrListen. Returns ctx.Err() when the context is canceled; use Stop to
// close the listener and wait for open connections.
func (s *Server) Start(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w %s: %w", ErrListen, s.addr, err)
	}
	if s.tlsConfig != nil {
		ln = tls.NewListener(ln, s.tlsConfig)
	}

	connCtx, cancel := context.WithCancel(ctx)
	s.listener = ln
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "relay listening",
		logger.Addr(ln.Addr().String()),
		slog.Bool("tls", s.tlsConfig != nil),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(connCtx, ln, handler)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serve runs the accept loop. It returns nil once the listener is closed.
func (s *Server) serve(ctx context.Context, ln net.Listener, handler Handler) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			delay = nextBackoff(delay)
			s.logger.WarnContext(ctx, "accept failed",
				logger.Error(err),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0

		// Stop flips running under the write lock before it waits, so a
		// connection accepted past that point is dropped instead of tracked.
		s.mu.RLock()
		if !s.running {
			s.mu.RUnlock()
			_ = conn.Close()
			return nil
		}
		s.conns.Add(1)
		s.mu.RUnlock()

		go s.handle(ctx, handler, conn)
	}
}

func (s *Server) handle(ctx context.Context, handler Handler, conn net.Conn) {
	defer s.conns.Done()

	log := s.logger.With(logger.RemoteAddr(conn.RemoteAddr().String()))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			_ = conn.Close()
			log.ErrorContext(ctx, "connection handler panicked", slog.Any("panic", r))
		}
	}()

	log.DebugContext(ctx, "connection accepted")
	if err := handler.ServeConn(ctx, conn); err != nil {
		log.InfoContext(ctx, "connection closed with error", logger.Error(err), logger.Elapsed(start))
		return
	}
	log.DebugContext(ctx, "connection closed", logger.Elapsed(start))
}

// Stop closes the listener, cancels every connection context, and waits up
// to the shutdown timeout for handlers to return.
// Returns immediately if the server is not running.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln, cancel, timeout := s.listener, s.cancel, s.shutdown
	s.mu.Unlock()

	s.logger.Info("shutting down relay listener", slog.Duration("timeout", timeout))

	err := ln.Close()
	cancel()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Error("relay shutdown timed out")
		return ErrShutdownTimeout
	}

	if err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Error("relay listener close error", logger.Error(err))
		return err
	}

	s.logger.Info("relay shutdown complete")
	return nil
}

// Addr returns the bound address while running, the configured one otherwise.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running && s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Running reports whether the listener is bound.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function serves until ctx is canceled and then stops
// gracefully. Bind failures are returned.
func (s *Server) Run(ctx context.Context, handler Handler) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx, handler)
		}()

		select {
		case <-ctx.Done():
			if stopErr := s.Stop(); stopErr != nil {
				s.logger.Error("failed to stop relay during context cancellation", logger.Error(stopErr))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if stopErr := s.Stop(); stopErr != nil {
					s.logger.Error("failed to stop relay during context cancellation", logger.Error(stopErr))
				}
				return nil
			}
			return err
		}
	}
}

// Run is a convenience function that creates and runs a server with default settings.
func Run(ctx context.Context, addr string, handler Handler) error {
	return New(addr).Run(ctx, handler)()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(2*d, maxAcceptBackoff)
}
