package client_test

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/client"
	"github.com/dmitrymomot/relay/core/relay"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startRelay(t *testing.T) (*relay.Hub, string) {
	t.Helper()

	hub := relay.NewHub()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() { _ = hub.ServeConn(ctx, conn) }()
		}
	}()
	t.Cleanup(func() {
		cancel()
		_ = ln.Close()
	})
	return hub, ln.Addr().String()
}

func TestClient_Run(t *testing.T) {
	t.Parallel()

	hub, addr := startRelay(t)

	c, err := client.Dial(context.Background(), addr)
	require.NoError(t, err)

	in, input := io.Pipe()
	var out lockedBuffer
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), in, &out) }()

	_, err = io.WriteString(input, "join cats\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		g, ok := hub.Groups().Get("cats")
		return ok && g.Subscribers() == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err = io.WriteString(input, "post cats meow\n\npost birds tweet\nbogus\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "[cats] meow\n") &&
			strings.Contains(s, "! Can't send message 'tweet' to the group 'birds' because the group does not exist\n") &&
			strings.Contains(s, "! unknown command: \"bogus\"\n")
	}, 2*time.Second, 5*time.Millisecond, "output: %s", out.String())

	require.NoError(t, input.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after input closed")
	}

	require.Eventually(t, func() bool { return hub.Connections() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_ServerClosesConnection(t *testing.T) {
	t.Parallel()

	server, conn := net.Pipe()
	c := client.New(conn)

	in, input := io.Pipe()
	defer input.Close()

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), in, io.Discard) }()

	require.NoError(t, server.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after server closed")
	}
}

func TestClient_ContextCancel(t *testing.T) {
	t.Parallel()

	server, conn := net.Pipe()
	defer server.Close()
	c := client.New(conn)

	in, input := io.Pipe()
	defer input.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, in, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after cancel")
	}
}

func TestDial_Failure(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = client.Dial(context.Background(), addr)
	assert.ErrorIs(t, err, client.ErrDial)
}
