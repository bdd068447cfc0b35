package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
)

// DefaultMaxLineSize bounds a single inbound line.
const DefaultMaxLineSize = 64 * 1024

// Decoder reads newline-delimited packets from a stream. It is lazy: nothing
// is read until Next is called. Not safe for concurrent use.
type Decoder[T Packet] struct {
	sc    *bufio.Scanner
	parse func([]byte) (T, error)
	err   error
}

// DecoderOption configures a Decoder.
type DecoderOption func(*bufio.Scanner)

// WithMaxLineSize limits the length of a single line. Values <= 0 are ignored.
func WithMaxLineSize(n int) DecoderOption {
	return func(sc *bufio.Scanner) {
		if n > 0 {
			sc.Buffer(make([]byte, 0, min(n, 4096)), n)
		}
	}
}

// NewClientDecoder decodes ClientPackets from r.
func NewClientDecoder(r io.Reader, opts ...DecoderOption) *Decoder[ClientPacket] {
	return newDecoder(r, UnmarshalClient, opts...)
}

// NewServerDecoder decodes ServerPackets from r.
func NewServerDecoder(r io.Reader, opts ...DecoderOption) *Decoder[ServerPacket] {
	return newDecoder(r, UnmarshalServer, opts...)
}

func newDecoder[T Packet](r io.Reader, parse func([]byte) (T, error), opts ...DecoderOption) *Decoder[T] {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), DefaultMaxLineSize)
	for _, opt := range opts {
		opt(sc)
	}
	return &Decoder[T]{sc: sc, parse: parse}
}

// Next returns the next packet. It returns io.EOF when the stream ends
// cleanly. Any other error is sticky: subsequent calls return it again.
func (d *Decoder[T]) Next() (T, error) {
	var zero T
	if d.err != nil {
		return zero, d.err
	}

	if !d.sc.Scan() {
		err := d.sc.Err()
		switch {
		case err == nil:
			d.err = io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			d.err = ErrLineTooLong
		default:
			d.err = err
		}
		return zero, d.err
	}

	p, err := d.parse(d.sc.Bytes())
	if err != nil {
		d.err = fmt.Errorf("line %q: %w", truncate(d.sc.Bytes(), 128), err)
		return zero, d.err
	}
	return p, nil
}

// All ranges over the remaining packets. The sequence stops after the first
// error, which is yielded; a clean end of stream yields nothing.
func (d *Decoder[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			p, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
