// Package redis creates go-redis clients with connection retries and
// exposes a ping-based readiness check.
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0"}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	gw := gateway.New(addr, hub, gateway.WithChecks(redis.Healthcheck(client)))
//
// Connect rejects an empty URL with ErrEmptyConnectionURL and a malformed
// one with ErrFailedToParseRedisConnString. When the server does not answer
// a PING within RetryAttempts tries it returns ErrRedisNotReady. Both
// redis:// and rediss:// (TLS) URLs are accepted.
package redis
