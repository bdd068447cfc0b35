package client

import "errors"

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidCommand = errors.New("invalid command arguments")
	ErrDial           = errors.New("failed to connect to relay")
)
