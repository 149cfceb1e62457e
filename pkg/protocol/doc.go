// Package protocol defines the wire vocabulary shared by the server and
// client: packet headers, message op codes, connectionless commands, info
// strings and sequence arithmetic.
//
// # Packets
//
// Every sequenced packet starts with a Header:
//
//	[4] sequence (high bit = fragmented)
//	[2] qport            client to server only
//	[2] fragment start   fragmented packets only
//	[2] fragment length  fragmented packets only
//	[N] payload
//
// A sequence word of 0xFFFFFFFF marks an out-of-band packet whose payload
// is plain text handled outside any connection.
//
// # Messages
//
// The payload of a reassembled server message is a bit-packed sequence of
// blocks, each introduced by an SvcOp:
//
//	[32] reliable acknowledge
//	SvcGamestate | SvcServerCommand | SvcSnapshot ...
//	SvcEOF
//
// Client messages carry the server id, the last received server message
// and the last executed server command, then ClcOp blocks.
//
// # Sequence Numbers
//
// All sequence numbers wrap. Compare them with SequenceGreater and
// SequenceDiff, never with < or >.
package protocol
