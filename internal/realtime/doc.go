// Package realtime implements the live synchronization protocol between
// server-held queue state and connected clients. Each connection runs as
// its own actor goroutine with an inbox channel, so heartbeat handling,
// disconnects, and message processing never race on one connection's
// mutable state. The server's persisted document is always authoritative;
// divergent client state produces a conflict record and a forced resync.
package realtime
