// Package reliable tracks text commands that must reach the peer exactly
// once and in order.
//
// The sender appends commands to a Log and resends everything after the
// peer's last acknowledgement in every outgoing message. The peer echoes
// the highest sequence it has executed; Acknowledge evicts up to it. If the
// peer falls a whole window behind, Append fails and the connection is
// dropped rather than losing commands.
package reliable
