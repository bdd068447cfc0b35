package protocol

import "errors"

var (
	// ErrDecode is returned for a line that is not a valid packet:
	// malformed JSON, an unknown tag, or missing payload fields.
	ErrDecode = errors.New("protocol: invalid packet")

	// ErrLineTooLong is returned when a line exceeds the decoder's limit.
	ErrLineTooLong = errors.New("protocol: line too long")

	// ErrUnknownPacket is returned when encoding a Packet of a foreign type.
	ErrUnknownPacket = errors.New("protocol: unknown packet type")
)
