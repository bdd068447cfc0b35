// Package gateway exposes a relay hub over HTTP: a WebSocket endpoint that
// carries the same line protocol as the TCP listener, plus liveness,
// readiness, and stats endpoints for operators.
//
// Each inbound WebSocket frame is a chunk of the client's line stream, so a
// frame may carry several packets or part of one. Each outbound packet is
// sent as one text frame containing a single newline-terminated line.
//
//	gw := gateway.New(":8081", hub,
//		gateway.WithLogger(log),
//		gateway.WithChecks(redis.Healthcheck(client)),
//	)
//	g.Go(gw.Run(ctx))
package gateway
