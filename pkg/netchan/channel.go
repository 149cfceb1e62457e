package netchan

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Channel errors.
var (
	ErrMessageTooLarge  = errors.New("netchan: message exceeds maximum length")
	ErrFragmentsPending = errors.New("netchan: previous message still has unsent fragments")
)

// Side tells a channel which end of the connection it serves. Packets from
// client to server carry a qport.
type Side uint8

const (
	ClientSide Side = iota
	ServerSide
)

// Result classifies the outcome of Process.
type Result uint8

const (
	// Delivered means a complete message is returned.
	Delivered Result = iota
	// FragmentPending means a fragment was stored and more are expected.
	FragmentPending
	// Duplicate means the sequence was not newer than the last delivered.
	Duplicate
	// Stale means a fragment belonged to an older message than the one
	// being reassembled.
	Stale
	// Malformed means the header or payload bounds were invalid.
	Malformed
	// OutOfOrderFragment means a fragment did not start where the
	// reassembly buffer ends.
	OutOfOrderFragment
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case FragmentPending:
		return "fragment_pending"
	case Duplicate:
		return DropDuplicate
	case Stale:
		return DropStale
	case Malformed:
		return DropMalformed
	case OutOfOrderFragment:
		return DropOutOfOrder
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Stats holds per-channel counters.
type Stats struct {
	PacketsSent     uint64
	FragmentsSent   uint64
	BytesSent       uint64
	PacketsReceived uint64
	BytesReceived   uint64
	Delivered       uint64
	Dropped         uint64 // sequences never seen
	Discarded       uint64 // packets rejected by Process
}

// Channel is one end of a sequenced, unreliable, fragmenting connection.
//
// Each logical message gets a fresh sequence number. Messages larger than
// a single packet are split into fragments that share the sequence and are
// reassembled by the receiver. Lost messages are never retransmitted; the
// receiver learns how many it missed through Dropped.
//
// A Channel is not safe for concurrent use.
type Channel struct {
	env       *Env
	logger    *slog.Logger
	side      Side
	transport Transport
	remote    Address
	qport     uint16

	outgoingSequence uint32 // next sequence to send
	incomingSequence uint32 // last delivered
	dropped          int32  // sequences skipped before the last delivery

	// reassembly
	reassembling     bool
	fragmentSequence uint32
	fragmentLength   int
	fragmentBuffer   []byte

	// outgoing fragments
	unsentFragments bool
	unsentStart     int
	unsentLength    int
	unsentBuffer    []byte

	packet *bitstream.Message
	stats  Stats
}

// New creates a channel to remote over transport. qport is written into
// every client-side packet header.
func New(env *Env, side Side, transport Transport, remote Address, qport uint16) *Channel {
	env = env.withDefaults()
	return &Channel{
		env:              env,
		logger:           env.Logger.With("component", "netchan", "remote", remote.String()),
		side:             side,
		transport:        transport,
		remote:           remote,
		qport:            qport,
		outgoingSequence: 1,
		fragmentBuffer:   make([]byte, protocol.MaxMsgLen),
		unsentBuffer:     make([]byte, protocol.MaxMsgLen),
		packet:           bitstream.New(protocol.MaxPacketLen),
	}
}

// Transmit sends data as the next sequenced message. Messages of
// protocol.FragmentSize bytes or more are fragmented; unless PaceFragments
// is set every fragment is sent before Transmit returns.
func (c *Channel) Transmit(data []byte) error {
	if len(data) > protocol.MaxMsgLen {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}
	if c.unsentFragments {
		return ErrFragmentsPending
	}

	if len(data) >= protocol.FragmentSize {
		c.unsentFragments = true
		c.unsentStart = 0
		c.unsentLength = copy(c.unsentBuffer, data)
		c.scramble(c.unsentBuffer[:c.unsentLength], c.outgoingSequence)
		if c.env.PaceFragments {
			return c.TransmitNextFragment()
		}
		for c.unsentFragments {
			if err := c.TransmitNextFragment(); err != nil {
				return err
			}
		}
		return nil
	}

	h := protocol.Header{
		Sequence: c.outgoingSequence,
		HasQPort: c.side == ClientSide,
		QPort:    c.qport,
	}
	c.packet.Reset()
	h.Write(c.packet)
	start := c.packet.Len()
	c.packet.WriteData(data)
	c.scramble(c.packet.Bytes()[start:], c.outgoingSequence)

	seq := c.outgoingSequence
	c.outgoingSequence = nextSequence(c.outgoingSequence)
	return c.send(seq, c.packet.Bytes(), false)
}

// TransmitNextFragment sends the next fragment of a pending message. It is
// a no-op when nothing is pending.
func (c *Channel) TransmitNextFragment() error {
	if !c.unsentFragments {
		return nil
	}
	n := c.unsentLength - c.unsentStart
	if n > protocol.FragmentSize {
		n = protocol.FragmentSize
	}
	h := protocol.Header{
		Sequence:       c.outgoingSequence,
		Fragmented:     true,
		HasQPort:       c.side == ClientSide,
		QPort:          c.qport,
		FragmentStart:  uint16(c.unsentStart),
		FragmentLength: uint16(n),
	}
	c.packet.Reset()
	h.Write(c.packet)
	c.packet.WriteData(c.unsentBuffer[c.unsentStart : c.unsentStart+n])

	seq := c.outgoingSequence
	c.unsentStart += n

	// A full-size fragment always implies another one follows, so a message
	// that is an exact multiple of FragmentSize ends with an empty fragment.
	if c.unsentStart == c.unsentLength && n != protocol.FragmentSize {
		c.unsentFragments = false
		c.outgoingSequence = nextSequence(c.outgoingSequence)
	}
	return c.send(seq, c.packet.Bytes(), true)
}

// UnsentFragments reports whether a fragmented message is partially sent.
func (c *Channel) UnsentFragments() bool {
	return c.unsentFragments
}

func (c *Channel) send(seq uint32, packet []byte, fragment bool) error {
	c.stats.PacketsSent++
	c.stats.BytesSent += uint64(len(packet))
	if fragment {
		c.stats.FragmentsSent++
	}
	c.env.Metrics.PacketSent(len(packet), fragment)
	if c.env.ShowPackets {
		c.logger.Debug("send", "seq", seq, "size", len(packet), "fragment", fragment)
	}
	if err := c.transport.SendPacket(c.remote, packet); err != nil {
		return fmt.Errorf("netchan: send to %s: %w", c.remote, err)
	}
	return nil
}

// Process consumes one sequenced packet from the remote peer. It returns the
// complete message when the result is Delivered and nil otherwise. The
// returned slice is owned by the caller.
func (c *Channel) Process(packet []byte) ([]byte, Result) {
	c.stats.PacketsReceived++
	c.stats.BytesReceived += uint64(len(packet))
	c.env.Metrics.PacketReceived(len(packet))

	m := bitstream.Wrap(packet)
	h, err := protocol.ReadHeader(m, c.side == ServerSide)
	if err != nil {
		return c.discard(Malformed, 0, "error", err)
	}
	seq := protocol.ExpandSequence(h.Sequence, c.incomingSequence)

	if !protocol.SequenceGreater(seq, c.incomingSequence) {
		return c.discard(Duplicate, seq, "last", c.incomingSequence)
	}

	if !h.Fragmented {
		payload := m.ReadRemaining()
		return c.deliver(seq, payload), Delivered
	}

	if c.reassembling && seq != c.fragmentSequence {
		if protocol.SequenceLess(seq, c.fragmentSequence) {
			return c.discard(Stale, seq, "reassembling", c.fragmentSequence)
		}
		c.reassembling = false
	}
	if !c.reassembling {
		c.reassembling = true
		c.fragmentSequence = seq
		c.fragmentLength = 0
	}

	if int(h.FragmentStart) != c.fragmentLength {
		return c.discard(OutOfOrderFragment, seq, "start", h.FragmentStart, "have", c.fragmentLength)
	}
	if m.Remaining()/8 != int(h.FragmentLength) {
		return c.discard(Malformed, seq, "declared", h.FragmentLength, "carried", m.Remaining()/8)
	}
	frag := m.ReadData(int(h.FragmentLength))
	c.fragmentLength += copy(c.fragmentBuffer[c.fragmentLength:], frag)

	if int(h.FragmentLength) == protocol.FragmentSize {
		if c.env.ShowPackets {
			c.logger.Debug("fragment", "seq", seq, "have", c.fragmentLength)
		}
		return nil, FragmentPending
	}

	msg := make([]byte, c.fragmentLength)
	copy(msg, c.fragmentBuffer[:c.fragmentLength])
	return c.deliver(seq, msg), Delivered
}

func (c *Channel) deliver(seq uint32, payload []byte) []byte {
	c.dropped = protocol.SequenceDiff(seq, c.incomingSequence+1)
	if c.dropped > 0 {
		c.stats.Dropped += uint64(c.dropped)
		c.env.Metrics.PacketDropped(DropLost)
		if c.env.ShowDrop {
			c.logger.Debug("dropped packets", "count", c.dropped, "at", seq)
		}
	}
	c.incomingSequence = seq
	if c.reassembling && !protocol.SequenceGreater(c.fragmentSequence, seq) {
		c.reassembling = false
	}
	c.scramble(payload, seq)
	c.stats.Delivered++
	if c.env.ShowPackets {
		c.logger.Debug("recv", "seq", seq, "size", len(payload))
	}
	return payload
}

func (c *Channel) discard(r Result, seq uint32, attrs ...any) ([]byte, Result) {
	c.stats.Discarded++
	c.env.Metrics.PacketDropped(r.String())
	if c.env.ShowDrop {
		c.logger.Debug("discard", append([]any{"result", r.String(), "seq", seq}, attrs...)...)
	}
	return nil, r
}

func (c *Channel) scramble(data []byte, seq uint32) {
	if c.env.Scramble {
		Scramble(data, c.env.ScrambleKey^seq)
	}
}

// OutgoingSequence returns the sequence the next message will use.
func (c *Channel) OutgoingSequence() uint32 {
	return c.outgoingSequence
}

// IncomingSequence returns the sequence of the last delivered message.
func (c *Channel) IncomingSequence() uint32 {
	return c.incomingSequence
}

// Dropped returns how many sequences were skipped just before the last
// delivered message.
func (c *Channel) Dropped() int {
	return int(c.dropped)
}

// Remote returns the peer address.
func (c *Channel) Remote() Address {
	return c.remote
}

// SetRemote updates the peer address, for example after a NAT port change.
func (c *Channel) SetRemote(a Address) {
	c.remote = a
	c.logger = c.env.Logger.With("component", "netchan", "remote", a.String())
}

// QPort returns the channel's qport.
func (c *Channel) QPort() uint16 {
	return c.qport
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return c.stats
}

// nextSequence advances a sequence, skipping the value whose wire bits
// would make a fragmented header read as the out-of-band marker.
func nextSequence(seq uint32) uint32 {
	seq++
	if seq&protocol.SequenceMask == protocol.SequenceMask {
		seq++
	}
	return seq
}

// OutOfBandPrint sends a connectionless text packet.
func OutOfBandPrint(t Transport, to Address, format string, args ...any) error {
	return OutOfBandData(t, to, []byte(fmt.Sprintf(format, args...)))
}

// OutOfBandData sends a connectionless binary packet.
func OutOfBandData(t Transport, to Address, data []byte) error {
	return t.SendPacket(to, protocol.OutOfBandPacket(data))
}
