package server_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/relay/core/server"
)

// echoHandler writes back each line until the peer disconnects or ctx ends.
func echoHandler(active *atomic.Int32) server.HandlerFunc {
	return func(ctx context.Context, conn net.Conn) error {
		active.Add(1)
		defer active.Add(-1)
		defer conn.Close()

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			if _, err := conn.Write(append(sc.Bytes(), '\n')); err != nil {
				return err
			}
		}
		return nil
	}
}

func startServer(t *testing.T, srv *server.Server, h server.Handler) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, h)() }()

	require.Eventually(t, srv.Running, 2*time.Second, 5*time.Millisecond)
	t.Cleanup(cancel)
	return cancel, errCh
}

func TestServer_ServesConnections(t *testing.T) {
	t.Parallel()

	var active atomic.Int32
	srv := server.New("127.0.0.1:0")
	cancel, errCh := startServer(t, srv, echoHandler(&active))

	conns := make([]net.Conn, 3)
	for i := range conns {
		conn, err := net.Dial("tcp", srv.Addr())
		require.NoError(t, err)
		defer conn.Close()
		conns[i] = conn
	}

	for _, conn := range conns {
		_, err := conn.Write([]byte("ping\n"))
		require.NoError(t, err)
		line, err := bufio.NewReader(conn).ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, "ping\n", line)
	}
	assert.Equal(t, int32(3), active.Load())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}

	assert.Equal(t, int32(0), active.Load(), "stop waits for handlers")
	assert.False(t, srv.Running())
}

func TestServer_BindFailure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := server.New(ln.Addr().String())
	err = srv.Start(context.Background(), server.HandlerFunc(func(context.Context, net.Conn) error { return nil }))
	require.ErrorIs(t, err, server.ErrListen)
	assert.False(t, srv.Running())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(srv.Run(ctx, server.HandlerFunc(func(context.Context, net.Conn) error { return nil })))
	assert.ErrorIs(t, g.Wait(), server.ErrListen)
}

func TestServer_AlreadyRunning(t *testing.T) {
	t.Parallel()

	var active atomic.Int32
	srv := server.New("127.0.0.1:0")
	startServer(t, srv, echoHandler(&active))

	err := srv.Start(context.Background(), echoHandler(&active))
	assert.ErrorIs(t, err, server.ErrServerAlreadyRunning)
}

func TestServer_StopWhenNotRunning(t *testing.T) {
	t.Parallel()

	srv := server.New("127.0.0.1:0")
	assert.NoError(t, srv.Stop())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())
}

func TestServer_HandlerErrorKeepsServing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := server.New("127.0.0.1:0")
	startServer(t, srv, server.HandlerFunc(func(_ context.Context, conn net.Conn) error {
		defer conn.Close()
		calls.Add(1)
		return errors.New("bad packet")
	}))

	for range 2 {
		conn, err := net.Dial("tcp", srv.Addr())
		require.NoError(t, err)
		_, err = conn.Read(make([]byte, 1))
		assert.Error(t, err)
		_ = conn.Close()
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestServer_HandlerPanicKeepsServing(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := server.New("127.0.0.1:0")
	startServer(t, srv, server.HandlerFunc(func(context.Context, net.Conn) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}))

	for range 2 {
		conn, err := net.Dial("tcp", srv.Addr())
		require.NoError(t, err)
		_, _ = conn.Read(make([]byte, 1))
		_ = conn.Close()
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestServer_ShutdownTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	srv := server.New("127.0.0.1:0", server.WithShutdownTimeout(50*time.Millisecond))
	go func() {
		_ = srv.Start(context.Background(), server.HandlerFunc(func(context.Context, net.Conn) error {
			<-release
			return nil
		}))
	}()
	require.Eventually(t, srv.Running, 2*time.Second, 5*time.Millisecond)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	// Give the acceptor time to hand the connection off.
	time.Sleep(50 * time.Millisecond)
	assert.ErrorIs(t, srv.Stop(), server.ErrShutdownTimeout)
}

func TestServer_StopDuringDialStorm(t *testing.T) {
	t.Parallel()

	var active atomic.Int32
	srv := server.New("127.0.0.1:0")
	cancel, errCh := startServer(t, srv, echoHandler(&active))
	addr := srv.Addr()

	dialCtx, stopDialing := context.WithCancel(context.Background())
	defer stopDialing()

	var dialers errgroup.Group
	for range 8 {
		dialers.Go(func() error {
			for dialCtx.Err() == nil {
				conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
				if err != nil {
					continue
				}
				_ = conn.Close()
			}
			return nil
		})
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	stopDialing()
	require.NoError(t, dialers.Wait())

	assert.Equal(t, int32(0), active.Load(), "no handler outlives stop")
	assert.False(t, srv.Running())
}
