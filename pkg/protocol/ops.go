package protocol

// SvcOp identifies a block inside a server to client message.
type SvcOp uint8

const (
	SvcBad           SvcOp = 0x00
	SvcNop           SvcOp = 0x01
	SvcGamestate     SvcOp = 0x02 // configstrings, baselines, client number
	SvcConfigstring  SvcOp = 0x03 // only inside gamestate
	SvcBaseline      SvcOp = 0x04 // only inside gamestate
	SvcServerCommand SvcOp = 0x05 // [seq][string]
	SvcSnapshot      SvcOp = 0x06
	SvcEOF           SvcOp = 0x07
)

// String returns the string representation of the op.
func (op SvcOp) String() string {
	switch op {
	case SvcBad:
		return "Bad"
	case SvcNop:
		return "Nop"
	case SvcGamestate:
		return "Gamestate"
	case SvcConfigstring:
		return "Configstring"
	case SvcBaseline:
		return "Baseline"
	case SvcServerCommand:
		return "ServerCommand"
	case SvcSnapshot:
		return "Snapshot"
	case SvcEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// ClcOp identifies a block inside a client to server message.
type ClcOp uint8

const (
	ClcBad           ClcOp = 0x00
	ClcNop           ClcOp = 0x01
	ClcMove          ClcOp = 0x02 // usercmds, delta snapshots allowed
	ClcMoveNoDelta   ClcOp = 0x03 // usercmds, request a full snapshot
	ClcClientCommand ClcOp = 0x04 // [seq][string]
	ClcEOF           ClcOp = 0x05
)

// String returns the string representation of the op.
func (op ClcOp) String() string {
	switch op {
	case ClcBad:
		return "Bad"
	case ClcNop:
		return "Nop"
	case ClcMove:
		return "Move"
	case ClcMoveNoDelta:
		return "MoveNoDelta"
	case ClcClientCommand:
		return "ClientCommand"
	case ClcEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

// SnapFlags are carried in every snapshot.
type SnapFlags uint8

const (
	SnapFlagRateDelayed SnapFlags = 0x01 // a snapshot was held back by the rate limit
	SnapFlagNotActive   SnapFlags = 0x02 // the client is not yet active in the game
	SnapFlagServerCount SnapFlags = 0x04 // toggled on every map change
)

// Has reports whether f contains flag.
func (f SnapFlags) Has(flag SnapFlags) bool {
	return f&flag != 0
}
