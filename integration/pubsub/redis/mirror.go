package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/relay/core/logger"
)

// DefaultChannelPrefix prefixes the Pub/Sub channel of every group.
const DefaultChannelPrefix = "relay:group:"

// Config holds mirror settings.
type Config struct {
	ChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"relay:group:"`
}

// Deliverer posts a message into a local group without mirroring it again.
// It reports whether the group exists.
type Deliverer interface {
	Deliver(group, message string) bool
}

// Mirror bridges relay instances through Redis Pub/Sub. Publish sends local
// posts to the group's channel; Start feeds posts from other instances into
// local groups that exist. Messages from this instance are ignored.
type Mirror struct {
	client redis.UniversalClient
	prefix string
	origin string
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	ready   chan struct{}
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mirror) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(prefix string) Option {
	return func(m *Mirror) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

// WithOrigin sets the instance id stamped on published envelopes.
// Defaults to a random UUID.
func WithOrigin(origin string) Option {
	return func(m *Mirror) {
		if origin != "" {
			m.origin = origin
		}
	}
}

// New creates a mirror over client.
func New(client redis.UniversalClient, opts ...Option) *Mirror {
	m := &Mirror{
		client: client,
		prefix: DefaultChannelPrefix,
		origin: uuid.NewString(),
		logger: logger.Nop(),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewFromConfig creates a mirror from cfg. Options override config values.
func NewFromConfig(client redis.UniversalClient, cfg Config, opts ...Option) *Mirror {
	return New(client, append([]Option{WithChannelPrefix(cfg.ChannelPrefix)}, opts...)...)
}

// Origin returns this instance's id.
func (m *Mirror) Origin() string {
	return m.origin
}

// Channel returns the Pub/Sub channel for group.
func (m *Mirror) Channel(group string) string {
	return m.prefix + group
}

// Ready is closed once the pattern subscription is confirmed.
func (m *Mirror) Ready() <-chan struct{} {
	return m.ready
}

// Publish sends a local post to other instances.
func (m *Mirror) Publish(ctx context.Context, group, message string) error {
	payload, err := Envelope{Origin: m.origin, Group: group, Message: message}.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	if err := m.client.Publish(ctx, m.Channel(group), payload).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Start subscribes to every group channel and delivers remote posts to
// target until ctx is done. It blocks.
func (m *Mirror) Start(ctx context.Context, target Deliverer) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	pattern := m.prefix + "*"
	ps := m.client.PSubscribe(ctx, pattern)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrSubscribe, err)
	}
	m.markReady()

	m.logger.InfoContext(ctx, "redis mirror subscribed",
		slog.String("pattern", pattern),
		slog.String("origin", m.origin),
	)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrSubscriptionClosed
			}
			m.handle(ctx, target, msg)
		}
	}
}

// Run returns an errgroup-compatible function that runs Start until ctx is done.
func (m *Mirror) Run(ctx context.Context, target Deliverer) func() error {
	return func() error {
		err := m.Start(ctx, target)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

func (m *Mirror) handle(ctx context.Context, target Deliverer, msg *redis.Message) {
	env, err := DecodeEnvelope([]byte(msg.Payload))
	if err != nil {
		m.logger.WarnContext(ctx, "dropping mirror message", slog.String("channel", msg.Channel), logger.Error(err))
		return
	}
	if env.Origin == m.origin {
		return
	}
	if !strings.HasPrefix(msg.Channel, m.prefix) || strings.TrimPrefix(msg.Channel, m.prefix) != env.Group {
		m.logger.WarnContext(ctx, "mirror envelope does not match its channel",
			slog.String("channel", msg.Channel),
			logger.Group(env.Group),
		)
		return
	}

	if !target.Deliver(env.Group, env.Message) {
		m.logger.DebugContext(ctx, "no local group for mirrored message", logger.Group(env.Group))
	}
}

func (m *Mirror) markReady() {
	select {
	case <-m.ready:
	default:
		close(m.ready)
	}
}
