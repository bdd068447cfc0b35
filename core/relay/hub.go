package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/protocol"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

// Limiter throttles Send packets. Keys are connection ids.
type Limiter interface {
	Allow(ctx context.Context, key string) (*ratelimiter.Result, error)
}

// Mirror forwards locally posted messages to other relay instances.
type Mirror interface {
	Publish(ctx context.Context, group, message string) error
}

// Config holds hub settings loaded from the environment.
type Config struct {
	QueueCapacity int           `env:"RELAY_QUEUE_CAPACITY" envDefault:"1000"`
	MaxLineSize   int           `env:"RELAY_MAX_LINE_SIZE" envDefault:"65536"`
	WriteTimeout  time.Duration `env:"RELAY_WRITE_TIMEOUT" envDefault:"0s"`
	MirrorTimeout time.Duration `env:"RELAY_MIRROR_TIMEOUT" envDefault:"2s"`
}

// DefaultMirrorTimeout bounds one mirror publish.
const DefaultMirrorTimeout = 2 * time.Second

// Hub owns the group registry and serves relay connections.
// Safe for concurrent use.
type Hub struct {
	groups       *Groups
	logger       *slog.Logger
	limiter      Limiter
	mirror       Mirror
	mirrorWait   time.Duration
	capacity     int
	maxLineSize  int
	writeTimeout time.Duration
	conns        atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithQueueCapacity sets the per-group queue capacity.
func WithQueueCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithMaxLineSize bounds a single inbound line.
func WithMaxLineSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.maxLineSize = n
		}
	}
}

// WithConnWriteTimeout bounds each outbound write.
func WithConnWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

// WithLimiter throttles Send packets per connection.
func WithLimiter(l Limiter) Option {
	return func(h *Hub) {
		h.limiter = l
	}
}

// WithMirror publishes every local post to m.
func WithMirror(m Mirror) Option {
	return func(h *Hub) {
		h.mirror = m
	}
}

// WithMirrorTimeout bounds each mirror publish. A slow mirror stalls only
// the sending connection, and at most for d.
func WithMirrorTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.mirrorWait = d
		}
	}
}

// NewHub creates a hub with an empty registry.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:      logger.Nop(),
		capacity:    DefaultQueueCapacity,
		maxLineSize: protocol.DefaultMaxLineSize,
		mirrorWait:  DefaultMirrorTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.groups = NewGroups(h.capacity, h.logger)
	return h
}

// NewHubFromConfig creates a hub from cfg. Options override config values.
func NewHubFromConfig(cfg Config, opts ...Option) *Hub {
	base := []Option{
		WithQueueCapacity(cfg.QueueCapacity),
		WithMaxLineSize(cfg.MaxLineSize),
		WithConnWriteTimeout(cfg.WriteTimeout),
		WithMirrorTimeout(cfg.MirrorTimeout),
	}
	return NewHub(append(base, opts...)...)
}

// Groups returns the registry.
func (h *Hub) Groups() *Groups {
	return h.groups
}

// Connections returns the number of connections currently being served.
func (h *Hub) Connections() int {
	return int(h.conns.Load())
}

// Stats is a point-in-time snapshot of hub activity.
type Stats struct {
	Groups      int `json:"groups"`
	Connections int `json:"connections"`
}

// Stats returns the current group and connection counts.
func (h *Hub) Stats() Stats {
	return Stats{
		Groups:      h.groups.Len(),
		Connections: h.Connections(),
	}
}

// Deliver posts message to the local group without mirroring it.
// It reports whether the group exists.
func (h *Hub) Deliver(group, message string) bool {
	g, ok := h.groups.Get(group)
	if !ok {
		return false
	}
	g.Post(message)
	return true
}

// Close closes every group and waits for relay goroutines to finish.
// Call it after the listeners have stopped.
func (h *Hub) Close() {
	h.groups.Close()
}

// ServeConn runs the packet loop for conn until the peer disconnects, a
// packet cannot be decoded, a reply cannot be written, or ctx is done. conn
// is closed and every subscription made through it is dropped on return.
// A nil error means the peer closed the stream or the hub is shutting down.
func (h *Hub) ServeConn(ctx context.Context, conn net.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	// Unblocks the read below when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	h.conns.Add(1)
	defer h.conns.Add(-1)

	c := &connState{
		id:     uuid.NewString(),
		out:    NewOutbound(conn, WithWriteTimeout(h.writeTimeout)),
		joined: make(map[string]struct{}),
	}
	var remote string
	if addr := conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	c.logger = h.logger.With(logger.ConnID(c.id), logger.RemoteAddr(remote))
	c.logger.DebugContext(ctx, "connection opened")

	dec := protocol.NewClientDecoder(conn, protocol.WithMaxLineSize(h.maxLineSize))
	for {
		p, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrReadPacket, err)
		}
		if err := h.dispatch(ctx, c, p); err != nil {
			return err
		}
	}
}

type connState struct {
	id     string
	out    *Outbound
	joined map[string]struct{}
	logger *slog.Logger
}

func (h *Hub) dispatch(ctx context.Context, c *connState, p protocol.ClientPacket) error {
	switch p := p.(type) {
	case protocol.Join:
		if _, ok := c.joined[p.Group]; ok {
			return nil
		}
		if !h.groups.GetOrCreate(p.Group).Join(ctx, c.out) {
			c.logger.DebugContext(ctx, "group closed, join ignored", logger.Group(p.Group))
			return nil
		}
		c.joined[p.Group] = struct{}{}
		c.logger.DebugContext(ctx, "joined group", logger.Group(p.Group))
		return nil

	case protocol.Send:
		if h.limiter != nil {
			res, err := h.limiter.Allow(ctx, c.id)
			if err != nil {
				c.logger.WarnContext(ctx, "rate limiter failed", logger.Error(err))
			} else if !res.Allowed() {
				return c.reply(protocol.Error{Text: fmt.Sprintf(
					"Rate limit exceeded for group '%s', retry in %s",
					p.Group, res.RetryAfter().Round(time.Millisecond),
				)})
			}
		}

		g, ok := h.groups.Get(p.Group)
		if !ok {
			return c.reply(protocol.Error{Text: fmt.Sprintf(
				"Can't send message '%s' to the group '%s' because the group does not exist",
				p.Message, p.Group,
			)})
		}

		n := g.Post(p.Message)
		c.logger.DebugContext(ctx, "posted message", logger.Group(p.Group), logger.Count("subscribers", n))

		h.publishMirror(ctx, c, p)
		return nil

	default:
		return fmt.Errorf("%w: unexpected packet %T", ErrReadPacket, p)
	}
}

func (h *Hub) publishMirror(ctx context.Context, c *connState, p protocol.Send) {
	if h.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.mirrorWait)
	defer cancel()

	if err := h.mirror.Publish(ctx, p.Group, p.Message); err != nil {
		c.logger.WarnContext(ctx, "mirror publish failed", logger.Group(p.Group), logger.Error(err))
	}
}

func (c *connState) reply(p protocol.ServerPacket) error {
	return c.out.Send(p)
}
