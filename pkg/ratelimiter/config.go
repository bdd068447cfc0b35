package ratelimiter

import (
	"fmt"
	"time"
)

// Config describes a token bucket: Capacity tokens at most, RefillRate
// tokens added every RefillInterval.
type Config struct {
	Capacity       int           `env:"RELAY_SEND_BURST" envDefault:"20"`
	RefillRate     int           `env:"RELAY_SEND_RATE" envDefault:"0"`
	RefillInterval time.Duration `env:"RELAY_SEND_INTERVAL" envDefault:"1s"`
}

// Enabled reports whether the config describes an active limit.
// A zero RefillRate means unlimited.
func (c Config) Enabled() bool {
	return c.RefillRate > 0
}

// Validate checks that all fields are positive.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	}
	if c.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %s", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}
