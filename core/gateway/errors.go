package gateway

import "errors"

var (
	ErrMissingAddress       = errors.New("gateway address is required")
	ErrServerAlreadyRunning = errors.New("gateway is already running")
	ErrShutdownTimeout      = errors.New("timed out waiting for websocket connections to close")
)
