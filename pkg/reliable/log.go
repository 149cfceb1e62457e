package reliable

import (
	"errors"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Log errors.
var (
	ErrWindowExhausted = errors.New("reliable: too many unacknowledged commands")
	ErrInvalidAck      = errors.New("reliable: acknowledgement ahead of last sent command")
)

// Command is one reliable text command.
type Command struct {
	Sequence uint32
	Text     string
}

// Len returns the command's length in bytes.
func (c Command) Len() int {
	return len(c.Text)
}

// Log stores outgoing reliable commands until the peer acknowledges them.
//
// Sequence numbers start at 1 and wrap. The log holds at most window
// unacknowledged commands; an Append beyond that fails and marks the log
// exhausted, which means the peer can no longer catch up and the connection
// must be dropped. A Log is owned by one connection and is not safe for
// concurrent use.
type Log struct {
	entries   []Command // ring indexed by sequence modulo window
	window    int
	sequence  uint32 // last appended
	acked     uint32 // last acknowledged
	exhausted bool
}

// New creates a log with room for window unacknowledged commands. The
// window should be a power of two so ring slots stay distinct across
// sequence wrap. A non-positive window selects protocol.MaxReliableCommands.
func New(window int) *Log {
	if window <= 0 {
		window = protocol.MaxReliableCommands
	}
	return &Log{
		entries: make([]Command, window),
		window:  window,
	}
}

// Append stores text under the next sequence number and returns it.
func (l *Log) Append(text string) (uint32, error) {
	if l.Pending() >= l.window {
		l.exhausted = true
		return 0, ErrWindowExhausted
	}
	l.sequence++
	l.entries[l.index(l.sequence)] = Command{Sequence: l.sequence, Text: text}
	return l.sequence, nil
}

// CommandsSince returns the unacknowledged commands after lastAcked in
// sequence order. Commands already evicted are never returned.
func (l *Log) CommandsSince(lastAcked uint32) []Command {
	start := lastAcked
	if protocol.SequenceLess(start, l.acked) {
		start = l.acked
	}
	n := protocol.SequenceDiff(l.sequence, start)
	if n <= 0 {
		return nil
	}
	out := make([]Command, 0, n)
	for seq := start + 1; seq != l.sequence+1; seq++ {
		out = append(out, l.entries[l.index(seq)])
	}
	return out
}

// Acknowledge evicts every command at or below seq. Stale acks are
// ignored; an ack beyond the last appended command returns ErrInvalidAck
// and changes nothing.
func (l *Log) Acknowledge(seq uint32) error {
	if protocol.SequenceGreater(seq, l.sequence) {
		return ErrInvalidAck
	}
	if !protocol.SequenceGreater(seq, l.acked) {
		return nil
	}
	for s := l.acked + 1; s != seq+1; s++ {
		l.entries[l.index(s)] = Command{}
	}
	l.acked = seq
	return nil
}

// Get returns the command stored under seq if it is still held.
func (l *Log) Get(seq uint32) (Command, bool) {
	if !protocol.SequenceGreater(seq, l.acked) || protocol.SequenceGreater(seq, l.sequence) {
		return Command{}, false
	}
	return l.entries[l.index(seq)], true
}

// Sequence returns the last appended sequence number.
func (l *Log) Sequence() uint32 {
	return l.sequence
}

// Acknowledged returns the last acknowledged sequence number.
func (l *Log) Acknowledged() uint32 {
	return l.acked
}

// Pending returns the number of unacknowledged commands.
func (l *Log) Pending() int {
	return int(protocol.SequenceDiff(l.sequence, l.acked))
}

// Window returns the configured window size.
func (l *Log) Window() int {
	return l.window
}

// Exhausted reports whether an Append has failed for lack of room.
func (l *Log) Exhausted() bool {
	return l.exhausted
}

// Reset drops every command and restarts numbering at seq, so the next
// Append uses seq+1.
func (l *Log) Reset(seq uint32) {
	for i := range l.entries {
		l.entries[i] = Command{}
	}
	l.sequence = seq
	l.acked = seq
	l.exhausted = false
}

func (l *Log) index(seq uint32) int {
	return int(seq % uint32(l.window))
}
