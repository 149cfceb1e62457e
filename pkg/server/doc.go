// Package server is the authoritative side of the wolfnet protocol.
//
// A Server owns a fixed number of client slots and one World. Each call to
// Frame advances server time, reads every waiting packet, drops clients
// that went silent and sends each connected client its next message.
//
// # Client Lifecycle
//
//	free -> connected -> primed -> active -> zombie -> free
//
// A client is admitted by the connectionless getchallenge / connect
// exchange. A connected client is sent a gamestate (configstrings and
// entity baselines) and becomes primed; its first usercmd makes it active.
// Dropped clients stay zombie for Config.ZombieTime so late packets are
// ignored instead of being read as a new connection.
//
// # Snapshots
//
// Every sent snapshot is kept in a per-client ring of protocol.PacketBackup
// frames. The next snapshot is delta encoded against the newest frame the
// client acknowledged, or sent in full when that frame is too old, was
// evicted or predates a demo recording. Snapshots are paced by the
// client's snapshot interval and by its byte rate.
//
// # Reliable Commands
//
// Server commands are queued in a reliable.Log per client and resent with
// every message until acknowledged. A client that lets the window fill up
// is dropped.
//
// # Concurrency
//
// A Server is driven from a single goroutine. Status and HTTPHandler may
// be used from any goroutine.
package server
