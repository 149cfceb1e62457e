// Package netchan implements the sequenced packet channel that carries game
// messages between a server and its clients.
//
// A Channel numbers every outgoing message, splits messages that do not fit
// in one datagram into fragments, reassembles fragments on the receiving
// side and discards duplicates and out-of-order packets. Delivery is
// unreliable: the layers above resend state (snapshots) or keep their own
// acknowledged logs (reliable commands).
//
// Channels are driven by their owner. Nothing in this package starts a
// goroutine; datagrams enter through Process and leave through a Transport.
package netchan
