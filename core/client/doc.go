// Package client implements a terminal client for the relay line protocol.
// It reads commands such as "join cats" or "post cats hello" and prints
// incoming messages as "[group] text" and server errors as "! text".
package client
