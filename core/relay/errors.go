package relay

import "errors"

var (
	// ErrOutboundClosed is returned by Outbound.Send after a previous write failed.
	ErrOutboundClosed = errors.New("relay: outbound connection is no longer usable")

	// ErrReadPacket wraps inbound decode and transport failures.
	ErrReadPacket = errors.New("relay: failed to read packet")

	// ErrWritePacket wraps failures to deliver a reply to the connection.
	ErrWritePacket = errors.New("relay: failed to write packet")
)
