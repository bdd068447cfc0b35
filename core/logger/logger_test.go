package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/logger"
)

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestElapsed(t *testing.T) {
	t.Parallel()
	start := time.Now().Add(-500 * time.Millisecond)
	attr := logger.Elapsed(start)
	require.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), 500*time.Millisecond)
}

func TestConnID(t *testing.T) {
	t.Parallel()
	attr := logger.ConnID("c-1")
	require.Equal(t, "conn_id", attr.Key)
	assert.Equal(t, "c-1", attr.Value.String())

	assert.True(t, logger.ConnID("").Equal(slog.Attr{}))
}

func TestRemoteAddr(t *testing.T) {
	t.Parallel()
	attr := logger.RemoteAddr("127.0.0.1:5000")
	require.Equal(t, "remote_addr", attr.Key)
	assert.Equal(t, "127.0.0.1:5000", attr.Value.String())

	assert.True(t, logger.RemoteAddr("").Equal(slog.Attr{}))
}

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("cats")
	require.Equal(t, "group", attr.Key)
	assert.Equal(t, "cats", attr.Value.String())
}

func TestKey(t *testing.T) {
	t.Parallel()
	attr := logger.Key("custom", "value")
	require.Equal(t, "custom", attr.Key)
	assert.Equal(t, "value", attr.Value.Any())

	assert.True(t, logger.Key("key", nil).Equal(slog.Attr{}))
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("writes json when configured", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))

		log.Info("test message", logger.Component("test"))

		assert.Contains(t, buf.String(), `"msg":"test message"`)
		assert.Contains(t, buf.String(), `"component":"test"`)
	})

	t.Run("respects level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithLevel(slog.LevelWarn), logger.WithOutput(&buf))

		log.Info("hidden")
		log.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("production adds service attrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithProduction("relay"), logger.WithOutput(&buf))

		log.Info("started")

		assert.Contains(t, buf.String(), `"service":"relay"`)
		assert.Contains(t, buf.String(), `"env":"production"`)
	})

	t.Run("drops empty attrs", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New(logger.WithJSONFormatter(), logger.WithOutput(&buf))

		log.Info("no error", logger.Error(nil))

		assert.NotContains(t, buf.String(), `"error"`)
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logger.ParseLevel("nonsense"))
}
