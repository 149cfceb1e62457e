package protocol

import (
	"errors"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
)

// Header sequence word values.
const (
	// FragmentBit marks a packet carrying one fragment of a larger message.
	FragmentBit uint32 = 1 << 31

	// SequenceMask selects the sequence bits of the header word.
	SequenceMask = FragmentBit - 1

	// OOBSequence marks a connectionless (out-of-band) packet.
	OOBSequence uint32 = 0xFFFFFFFF
)

// Header errors.
var (
	ErrShortPacket = errors.New("protocol: packet shorter than its header")
	ErrBadFragment = errors.New("protocol: fragment bounds out of range")
	ErrOutOfBand   = errors.New("protocol: packet is out-of-band")
)

// Header is the sequenced packet header.
//
// Wire format (little-endian):
//
//	┌──────────────────────────┬──────────┬───────────┬────────────┐
//	│ Sequence | FragmentBit   │ QPort    │ Frag Start│ Frag Length│
//	│ (4 bytes)                │ (2 bytes)│ (2 bytes) │ (2 bytes)  │
//	└──────────────────────────┴──────────┴───────────┴────────────┘
//	  always                     client to   only when fragmented
//	                             server only
//
// Only the low 31 bits of the sequence travel on the wire. Receivers
// rebuild the full value with ExpandSequence.
type Header struct {
	Sequence       uint32
	Fragmented     bool
	HasQPort       bool
	QPort          uint16
	FragmentStart  uint16
	FragmentLength uint16
}

// Size returns the encoded size of the header in bytes.
func (h *Header) Size() int {
	n := 4
	if h.HasQPort {
		n += 2
	}
	if h.Fragmented {
		n += 4
	}
	return n
}

// Write encodes the header at the message's write cursor.
func (h *Header) Write(m *bitstream.Message) {
	seq := h.Sequence & SequenceMask
	if h.Fragmented {
		seq |= FragmentBit
	}
	m.WriteUint32(seq)
	if h.HasQPort {
		m.WriteUint16(h.QPort)
	}
	if h.Fragmented {
		m.WriteUint16(h.FragmentStart)
		m.WriteUint16(h.FragmentLength)
	}
}

// ReadHeader decodes a header. hasQPort selects whether a qport field is
// expected, which is the case for packets travelling to the server.
//
// The returned Sequence holds only the wire bits.
func ReadHeader(m *bitstream.Message, hasQPort bool) (Header, error) {
	var h Header
	if m.Remaining() < 32 {
		return h, ErrShortPacket
	}
	raw := m.ReadUint32()
	if raw == OOBSequence {
		return h, ErrOutOfBand
	}
	h.Sequence = raw & SequenceMask
	h.Fragmented = raw&FragmentBit != 0

	if hasQPort {
		h.HasQPort = true
		h.QPort = m.ReadUint16()
	}
	if h.Fragmented {
		h.FragmentStart = m.ReadUint16()
		h.FragmentLength = m.ReadUint16()
	}
	if m.Err() != nil {
		return h, ErrShortPacket
	}
	if h.Fragmented {
		if h.FragmentLength > FragmentSize || int(h.FragmentStart)+int(h.FragmentLength) > MaxMsgLen {
			return h, ErrBadFragment
		}
	}
	return h, nil
}

// ExpandSequence rebuilds a full 32 bit sequence from its 31 wire bits,
// choosing the value closest to ref.
func ExpandSequence(wire, ref uint32) uint32 {
	d := (wire - ref) & SequenceMask
	if d&(1<<30) != 0 {
		d |= FragmentBit
	}
	return ref + d
}
