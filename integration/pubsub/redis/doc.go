// Package redis mirrors relay group posts across instances over Redis
// Pub/Sub.
//
// Every instance publishes its local posts as JSON envelopes
// {"origin":..,"group":..,"message":..} to the channel "<prefix><group>" and
// pattern-subscribes to "<prefix>*". Remote posts are delivered to the local
// group of the same name only if it already exists there; a post never
// creates a group. An instance ignores envelopes carrying its own origin.
//
//	mirror := redis.New(client, redis.WithLogger(log))
//	hub := relay.NewHub(relay.WithMirror(mirror))
//	g.Go(mirror.Run(ctx, hub))
package redis
