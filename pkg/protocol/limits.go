package protocol

// Packet and message limits.
const (
	// MaxMsgLen is the largest logical message a channel carries.
	MaxMsgLen = 16384

	// MaxPacketLen is the largest datagram ever put on the wire.
	MaxPacketLen = 1400

	// FragmentSize is the payload size of every fragment but the last.
	// A fragment shorter than this ends the message.
	FragmentSize = MaxPacketLen - 100

	// MaxFragments is the most fragments a MaxMsgLen message needs.
	MaxFragments = MaxMsgLen/FragmentSize + 1

	// PacketHeaderLen is the largest header: sequence, qport and fragment
	// bounds.
	PacketHeaderLen = 10
)

// Connection limits.
const (
	// PacketBackup is how many sent snapshots are kept per client for delta
	// reference. Must be a power of two.
	PacketBackup = 32
	PacketMask   = PacketBackup - 1

	// MaxReliableCommands is the window of unacknowledged reliable commands
	// in either direction. Must be a power of two.
	MaxReliableCommands = 64

	// MaxSnapshotEntities is the most entities one snapshot carries.
	MaxSnapshotEntities = 256

	// MaxConfigstrings is the size of the configstring table.
	MaxConfigstrings = 1024

	// MaxClients is the hard ceiling on client slots.
	MaxClients = 64

	// MaxInfoString is the limit for userinfo and serverinfo strings.
	MaxInfoString = 1024
)

// Version is sent in connect requests and checked by the server.
const Version = 71
