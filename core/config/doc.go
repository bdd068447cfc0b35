// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use and parses struct fields with
// caarlos0/env:
//
//	type Config struct {
//		Addr string `env:"RELAY_ADDR" envDefault:"127.0.0.1:8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
