package client

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Snapshot is one decoded view of the world.
type Snapshot struct {
	MessageNum  uint32 // sequence of the message that carried it
	DeltaNum    uint32 // message it was delta encoded from, 0 when full
	ServerTime  int32
	Flags       protocol.SnapFlags
	PlayerState gamestate.PlayerState
	Entities    []gamestate.EntityState // sorted by number

	// Valid is false when the delta base was no longer available. The
	// message was read to the end but the contents are unusable.
	Valid bool
}

// Entity returns the entity with number num.
func (s *Snapshot) Entity(num int) (gamestate.EntityState, bool) {
	for _, e := range s.Entities {
		if int(e.Number) == num {
			return e, true
		}
	}
	return gamestate.EntityState{}, false
}

// CommandHandler receives server commands that the parser does not
// consume itself. args[0] is the command name.
type CommandHandler func(args []string)

// Parser decodes server messages into configstrings, baselines and
// snapshots. It holds no connection state and also reads recorded demos.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	tables *gamestate.Tables
	logger *slog.Logger

	// OnCommand receives every server command other than configstring
	// updates.
	OnCommand CommandHandler

	reliableAck   uint32 // last client command the server acknowledged
	serverCommand uint32 // last server command executed
	clientNum     int
	serverID      int32
	gamestate     bool

	configstrings [protocol.MaxConfigstrings]string
	bigConfig     map[int]string
	baselines     [gamestate.MaxGEntities]gamestate.EntityState

	snapshots [protocol.PacketBackup]*Snapshot
	current   *Snapshot
	newSnap   bool
}

// NewParser creates a parser that decodes deltas with tables. A nil tables
// uses the default field order.
func NewParser(tables *gamestate.Tables, logger *slog.Logger) *Parser {
	if tables == nil {
		tables = gamestate.DefaultTables()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		tables:    tables,
		logger:    logger,
		clientNum: -1,
		bigConfig: make(map[int]string),
	}
}

// Parse decodes the message that arrived with sequence seq.
func (p *Parser) Parse(seq uint32, data []byte) error {
	m := bitstream.Wrap(data)
	ack := uint32(m.ReadInt32())
	if m.Err() != nil {
		return fmt.Errorf("%w: %v", ErrIllegibleMessage, m.Err())
	}
	p.reliableAck = ack

	for {
		op := protocol.SvcOp(m.ReadUint8())
		if m.Err() != nil {
			return fmt.Errorf("%w: %v", ErrIllegibleMessage, m.Err())
		}
		switch op {
		case protocol.SvcEOF:
			return nil
		case protocol.SvcNop:
		case protocol.SvcServerCommand:
			p.parseCommand(m)
		case protocol.SvcGamestate:
			p.parseGamestate(m)
		case protocol.SvcSnapshot:
			p.parseSnapshot(m, seq)
		default:
			return fmt.Errorf("%w: unexpected op %s (%d)", ErrIllegibleMessage, op, uint8(op))
		}
		if err := m.Err(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIllegibleMessage, op, err)
		}
	}
}

func (p *Parser) parseCommand(m *bitstream.Message) {
	seq := uint32(m.ReadInt32())
	text := m.ReadString()
	if m.Err() != nil {
		return
	}
	if !protocol.SequenceGreater(seq, p.serverCommand) {
		return
	}
	if seq != p.serverCommand+1 {
		p.logger.Warn("server commands skipped", "last", p.serverCommand, "got", seq)
	}
	p.serverCommand = seq
	p.execute(text)
}

// execute applies configstring updates and hands everything else to
// OnCommand. Long configstrings arrive as bcs0, bcs1... bcs2 pieces.
func (p *Parser) execute(text string) {
	args := protocol.Tokenize(text)
	if len(args) == 0 {
		return
	}
	switch args[0] {
	case "cs", "bcs0", "bcs1", "bcs2":
		if len(args) < 3 {
			p.logger.Warn("short configstring command", "text", text)
			return
		}
		index, err := strconv.Atoi(args[1])
		if err != nil || index < 0 || index >= protocol.MaxConfigstrings {
			p.logger.Warn("bad configstring index", "index", args[1])
			return
		}
		switch args[0] {
		case "cs":
			p.configstrings[index] = args[2]
		case "bcs0":
			p.bigConfig[index] = args[2]
		case "bcs1":
			p.bigConfig[index] += args[2]
		case "bcs2":
			p.configstrings[index] = p.bigConfig[index] + args[2]
			delete(p.bigConfig, index)
		}
		return
	}
	if p.OnCommand != nil {
		p.OnCommand(args)
	}
}

func (p *Parser) parseGamestate(m *bitstream.Message) {
	p.serverCommand = uint32(m.ReadInt32())
	p.configstrings = [protocol.MaxConfigstrings]string{}
	p.baselines = [gamestate.MaxGEntities]gamestate.EntityState{}
	clear(p.bigConfig)
	p.snapshots = [protocol.PacketBackup]*Snapshot{}
	p.current = nil

	for {
		op := protocol.SvcOp(m.ReadUint8())
		if m.Err() != nil {
			return
		}
		switch op {
		case protocol.SvcEOF:
			p.clientNum = int(m.ReadInt32())
			p.serverID = m.ReadInt32()
			p.gamestate = m.Err() == nil
			return
		case protocol.SvcConfigstring:
			index := int(m.ReadUint16())
			value := m.ReadBigString()
			if index >= protocol.MaxConfigstrings {
				m.Fail(fmt.Errorf("configstring index %d", index))
				return
			}
			p.configstrings[index] = value
		case protocol.SvcBaseline:
			num := int(m.ReadBits(gamestate.GEntityNumBits))
			bl, _ := p.tables.ReadDeltaEntity(m, nil, num)
			if num < len(p.baselines) {
				p.baselines[num] = bl
			}
		default:
			m.Fail(fmt.Errorf("unexpected op %s in gamestate", op))
			return
		}
	}
}

// parseSnapshot reads a snapshot carried by message seq. A delta snapshot
// names its base by distance; the base must still be in the ring.
func (p *Parser) parseSnapshot(m *bitstream.Message, seq uint32) {
	snap := &Snapshot{MessageNum: seq, Valid: true}
	snap.ServerTime = m.ReadInt32()
	deltaNum := uint32(m.ReadUint8())
	snap.Flags = protocol.SnapFlags(m.ReadUint8())

	var base *Snapshot
	if deltaNum > 0 {
		snap.DeltaNum = seq - deltaNum
		base = p.snapshots[snap.DeltaNum%protocol.PacketBackup]
		switch {
		case base == nil || base.MessageNum != snap.DeltaNum || !base.Valid:
			p.logger.Debug("delta base missing", "seq", seq, "base", snap.DeltaNum)
			snap.Valid = false
			base = nil
		case deltaNum >= protocol.PacketBackup-3:
			snap.Valid = false
		}
	}

	var fromPS *gamestate.PlayerState
	var old []gamestate.EntityState
	if base != nil {
		fromPS = &base.PlayerState
		old = base.Entities
	}
	snap.PlayerState = p.tables.ReadDeltaPlayerstate(m, fromPS)
	snap.Entities = p.readEntities(m, old)
	if m.Err() != nil {
		return
	}

	p.snapshots[seq%protocol.PacketBackup] = snap
	if snap.Valid && (p.current == nil || protocol.SequenceGreater(seq, p.current.MessageNum)) {
		p.current = snap
		p.newSnap = true
	}
}

// readEntities merges the entity records in m with the base list. Entities
// not mentioned are carried over unchanged.
func (p *Parser) readEntities(m *bitstream.Message, old []gamestate.EntityState) []gamestate.EntityState {
	ents := make([]gamestate.EntityState, 0, len(old))
	i := 0
	for {
		num := int(m.ReadBits(gamestate.GEntityNumBits))
		if m.Err() != nil {
			return ents
		}
		if num == gamestate.EntityNumNone {
			break
		}
		for i < len(old) && int(old[i].Number) < num {
			ents = append(ents, old[i])
			i++
		}
		from := &p.baselines[num]
		if i < len(old) && int(old[i].Number) == num {
			from = &old[i]
			i++
		}
		e, removed := p.tables.ReadDeltaEntity(m, from, num)
		if !removed {
			ents = append(ents, e)
		}
	}
	return append(ents, old[i:]...)
}

// Snapshot returns the newest valid snapshot.
func (p *Parser) Snapshot() (*Snapshot, bool) {
	return p.current, p.current != nil
}

// SnapshotAt returns the snapshot carried by message seq while it is
// still in the ring.
func (p *Parser) SnapshotAt(seq uint32) (*Snapshot, bool) {
	s := p.snapshots[seq%protocol.PacketBackup]
	if s == nil || s.MessageNum != seq {
		return nil, false
	}
	return s, true
}

// TakeNewSnapshot reports whether a newer snapshot arrived since the last
// call.
func (p *Parser) TakeNewSnapshot() bool {
	n := p.newSnap
	p.newSnap = false
	return n
}

// Configstring returns the value at index.
func (p *Parser) Configstring(index int) string {
	if index < 0 || index >= protocol.MaxConfigstrings {
		return ""
	}
	return p.configstrings[index]
}

// Baseline returns the baseline of entity num.
func (p *Parser) Baseline(num int) gamestate.EntityState {
	if num < 0 || num >= len(p.baselines) {
		return gamestate.EntityState{}
	}
	return p.baselines[num]
}

// HasGamestate reports whether a gamestate has been parsed.
func (p *Parser) HasGamestate() bool {
	return p.gamestate
}

// ClientNum returns the slot number assigned by the gamestate, or -1.
func (p *Parser) ClientNum() int {
	return p.clientNum
}

// ServerID returns the server id from the gamestate.
func (p *Parser) ServerID() int32 {
	return p.serverID
}

// ServerCommandSequence returns the last server command executed.
func (p *Parser) ServerCommandSequence() uint32 {
	return p.serverCommand
}

// ReliableAck returns the last client command the server acknowledged.
func (p *Parser) ReliableAck() uint32 {
	return p.reliableAck
}

// IsIllegible reports whether err came from a malformed server message.
func IsIllegible(err error) bool {
	return errors.Is(err, ErrIllegibleMessage)
}
