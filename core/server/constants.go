package server

import "time"

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultShutdownTimeout is how long Stop waits for open connections.
	DefaultShutdownTimeout = 10 * time.Second

	// Accept failures are retried with exponential backoff between these bounds.
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)
