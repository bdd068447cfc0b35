// Package relay implements group-based message fan-out over stream
// connections.
//
// A Hub serves each connection with ServeConn. Clients Join named groups and
// Send messages to them; every connection subscribed to a group receives each
// message as a Message packet. Posting never waits for subscribers: each
// group has a bounded queue, and a subscriber that falls more than the queue
// capacity behind receives an Error packet with the number of dropped
// messages and then continues with newer ones.
//
// Writes to one connection come from its own handler (error replies) and
// from one relay goroutine per joined group, so they go through a shared
// Outbound that serializes whole lines.
//
// When a connection ends, all of its relay goroutines stop and unsubscribe.
// Groups are never removed from the registry.
package relay
