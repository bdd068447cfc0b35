// Package server provides a TCP acceptor with graceful shutdown and
// functional options. Each accepted connection is handed to a Handler in its
// own goroutine; the handler owns the connection until it returns.
//
// # Basic Usage
//
//	srv := server.New("127.0.0.1:8080",
//		server.WithShutdownTimeout(10*time.Second),
//		server.WithLogger(log),
//	)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(srv.Run(ctx, hub))
//	if err := g.Wait(); err != nil {
//		log.Error("relay stopped", logger.Error(err))
//	}
//
// # Configuration
//
// Config is loaded from the environment:
//
//	RELAY_ADDR=127.0.0.1:8080
//	RELAY_SHUTDOWN_TIMEOUT=10s
//	RELAY_TLS_CERT_FILE=/path/to/cert.pem
//	RELAY_TLS_KEY_FILE=/path/to/key.pem
//
//	var cfg server.Config
//	config.MustLoad(&cfg)
//	srv, err := server.NewFromConfig(cfg)
//
// # Accept Errors
//
// A failed Accept only skips that iteration. Consecutive failures back off
// from 5ms up to 1s. Closing the listener ends the loop and Start returns.
//
// # Shutdown
//
// Stop closes the listener, cancels the context passed to every handler, and
// waits up to the shutdown timeout for handlers to return.
package server
