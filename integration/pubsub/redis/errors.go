package redis

import "errors"

var (
	ErrPublish            = errors.New("failed to publish message to redis")
	ErrSubscribe          = errors.New("failed to subscribe to redis channels")
	ErrSubscriptionClosed = errors.New("redis subscription closed")
	ErrInvalidEnvelope    = errors.New("invalid mirror envelope")
	ErrAlreadyStarted     = errors.New("mirror is already running")
)
