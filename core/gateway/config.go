package gateway

import "time"

// Config holds gateway configuration with environment variable support.
// An empty Addr disables the gateway.
type Config struct {
	Addr              string        `env:"GATEWAY_ADDR" envDefault:""`
	ShutdownTimeout   time.Duration `env:"GATEWAY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReadHeaderTimeout time.Duration `env:"GATEWAY_READ_HEADER_TIMEOUT" envDefault:"10s"`

	// "*" accepts any origin. Empty enforces same-origin.
	AllowedOrigins []string `env:"GATEWAY_ALLOWED_ORIGINS" envSeparator:","`
}

// Enabled reports whether a listen address is configured.
func (c Config) Enabled() bool {
	return c.Addr != ""
}
