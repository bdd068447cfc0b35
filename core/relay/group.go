package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/protocol"
	"github.com/dmitrymomot/relay/pkg/broadcast"
)

// DefaultQueueCapacity is the number of pending messages a group retains per
// subscriber before that subscriber is considered lagging.
const DefaultQueueCapacity = 1000

// Group is a named broadcast queue. Each Join starts one relay goroutine that
// forwards queued messages to the joining connection's Outbound.
type Group struct {
	name   string
	queue  *broadcast.Channel[string]
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newGroup(name string, capacity int, log *slog.Logger) *Group {
	return &Group{
		name:   name,
		queue:  broadcast.New[string](capacity),
		logger: log.With(logger.Group(name)),
	}
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Join subscribes out to messages posted from now on. The relay goroutine
// runs until ctx is done, the outbound fails, or the group is closed.
// It reports false, starting nothing, once the group is closed.
func (g *Group) Join(ctx context.Context, out *Outbound) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	rx := g.queue.Subscribe()
	g.wg.Add(1)
	go g.relay(ctx, rx, out)
	return true
}

// Post queues message for every current subscriber and returns how many
// there were. Posting to a group without subscribers is not an error.
func (g *Group) Post(message string) int {
	n, err := g.queue.Send(message)
	if err != nil {
		// ErrNoReceivers is the normal idle state; ErrClosed only happens at shutdown.
		return 0
	}
	return n
}

// Subscribers returns the number of live relay subscriptions.
func (g *Group) Subscribers() int {
	return g.queue.Receivers()
}

// Close closes the queue and refuses later joins. Relay goroutines drain
// what is queued and exit.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.queue.Close()
}

// Wait blocks until every relay goroutine of this group has exited.
func (g *Group) Wait() {
	g.wg.Wait()
}

func (g *Group) relay(ctx context.Context, rx *broadcast.Receiver[string], out *Outbound) {
	defer g.wg.Done()
	defer rx.Close()

	for {
		msg, err := rx.Recv(ctx)

		var lagged *broadcast.LaggedError
		switch {
		case err == nil:
			if err := out.Send(protocol.Message{Group: g.name, Message: msg}); err != nil {
				g.logger.DebugContext(ctx, "subscriber gone", logger.Error(err))
				return
			}
		case errors.As(err, &lagged):
			g.logger.WarnContext(ctx, "subscriber lagged", logger.Key("missed", lagged.Missed))
			notice := protocol.Error{Text: fmt.Sprintf("Dropped %d messages from %s.", lagged.Missed, g.name)}
			if err := out.Send(notice); err != nil {
				g.logger.DebugContext(ctx, "subscriber gone", logger.Error(err))
				return
			}
		default:
			return
		}
	}
}
