package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server address is required")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrListen               = errors.New("failed to bind listener")
	ErrShutdownTimeout      = errors.New("timed out waiting for connections to close")
	ErrFailedLoadCert       = errors.New("failed to load certificate")
)
