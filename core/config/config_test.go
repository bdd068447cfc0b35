package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/config"
)

type testConfig struct {
	Addr     string        `env:"CONFIG_TEST_ADDR" envDefault:"127.0.0.1:9000"`
	Capacity int           `env:"CONFIG_TEST_CAPACITY" envDefault:"1000"`
	Timeout  time.Duration `env:"CONFIG_TEST_TIMEOUT" envDefault:"5s"`
}

type requiredConfig struct {
	Value string `env:"CONFIG_TEST_REQUIRED_VALUE,required"`
}

func TestLoad(t *testing.T) {
	config.Reset()
	t.Setenv("CONFIG_TEST_CAPACITY", "16")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 16, cfg.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	t.Run("returns cached value", func(t *testing.T) {
		t.Setenv("CONFIG_TEST_CAPACITY", "32")

		var again testConfig
		require.NoError(t, config.Load(&again))
		assert.Equal(t, cfg, again)
	})
}

func TestLoadRequiredMissing(t *testing.T) {
	config.Reset()

	var cfg requiredConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIG_TEST_REQUIRED_VALUE")

	assert.Panics(t, func() {
		config.MustLoad(&requiredConfig{})
	})
}
