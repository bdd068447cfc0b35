package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/protocol"
)

// errDone stops the sibling loop once one side of the session ends.
var errDone = errors.New("session finished")

// Client is an interactive line client for a relay server.
type Client struct {
	conn   net.Conn
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New wraps an established connection.
func New(conn net.Conn, opts ...Option) *Client {
	c := &Client{conn: conn, logger: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to the relay at addr.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrDial, addr, err)
	}
	return New(conn, opts...), nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run sends every command read from in and prints every packet received
// until in is exhausted, the server closes the connection, or ctx is done.
// Unparseable commands are reported on out and skipped. The connection is
// closed on return.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	defer c.conn.Close()

	w := &syncWriter{w: out}
	g, ctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g.Go(func() error { return c.send(ctx, lines, w) })
	g.Go(func() error { return c.receive(ctx, w) })

	if err := g.Wait(); err != nil && !errors.Is(err, errDone) {
		return err
	}
	return nil
}

func (c *Client) send(ctx context.Context, lines <-chan string, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return errDone
			}
			p, err := ParseCommand(line)
			if errors.Is(err, ErrEmptyCommand) {
				continue
			}
			if err != nil {
				fmt.Fprintf(w, "! %v\n", err)
				continue
			}
			if err := protocol.Encode(c.conn, p); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send %s: %w", p.Tag(), err)
			}
		}
	}
}

func (c *Client) receive(ctx context.Context, w io.Writer) error {
	dec := protocol.NewServerDecoder(c.conn)
	for {
		p, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				c.logger.InfoContext(ctx, "server closed the connection")
				return errDone
			}
			return fmt.Errorf("receive: %w", err)
		}
		switch p := p.(type) {
		case protocol.Message:
			fmt.Fprintf(w, "[%s] %s\n", p.Group, p.Message)
		case protocol.Error:
			fmt.Fprintf(w, "! %s\n", p.Text)
		}
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
