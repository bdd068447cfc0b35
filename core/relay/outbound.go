package relay

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrymomot/relay/core/protocol"
)

type flusher interface {
	Flush() error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Outbound serializes packet writes to one connection. It is shared by the
// connection's own handler and by every group the connection joined, so
// each Send holds the lock for exactly one encode+write+flush.
type Outbound struct {
	mu           sync.Mutex
	w            io.Writer
	buf          bytes.Buffer
	writeTimeout time.Duration
	err          error
}

// OutboundOption configures an Outbound.
type OutboundOption func(*Outbound)

// WithWriteTimeout bounds each write when the writer supports write deadlines.
// Zero disables the deadline.
func WithWriteTimeout(d time.Duration) OutboundOption {
	return func(o *Outbound) {
		if d > 0 {
			o.writeTimeout = d
		}
	}
}

// NewOutbound wraps w.
func NewOutbound(w io.Writer, opts ...OutboundOption) *Outbound {
	o := &Outbound{w: w}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Send writes p as one line. Concurrent calls never interleave bytes.
// After a write failure the outbound is unusable and every later call
// returns ErrOutboundClosed.
func (o *Outbound) Send(p protocol.ServerPacket) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return fmt.Errorf("%w: %w", ErrOutboundClosed, o.err)
	}

	o.buf.Reset()
	if err := protocol.AppendLine(&o.buf, p); err != nil {
		return err
	}

	if o.writeTimeout > 0 {
		if d, ok := o.w.(writeDeadliner); ok {
			_ = d.SetWriteDeadline(time.Now().Add(o.writeTimeout))
		}
	}

	_, err := o.w.Write(o.buf.Bytes())
	if err == nil {
		if f, ok := o.w.(flusher); ok {
			err = f.Flush()
		}
	}
	if err != nil {
		o.err = err
		return fmt.Errorf("%w: %w", ErrWritePacket, err)
	}
	return nil
}

// Err returns the write error that broke the outbound, if any.
func (o *Outbound) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}
