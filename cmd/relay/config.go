package main

import (
	"github.com/dmitrymomot/relay/core/gateway"
	"github.com/dmitrymomot/relay/core/relay"
	"github.com/dmitrymomot/relay/core/server"
	redisdb "github.com/dmitrymomot/relay/integration/database/redis"
	redismirror "github.com/dmitrymomot/relay/integration/pubsub/redis"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

type Config struct {
	AppName   string `env:"APP_NAME" envDefault:"relay"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:""`
	LogFormat string `env:"LOG_FORMAT" envDefault:""` // text or json; follows APP_ENV when empty

	Hub       relay.Config
	Server    server.Config
	Gateway   gateway.Config
	RateLimit ratelimiter.Config
	Redis     redisdb.Config
	Mirror    redismirror.Config
}
