package bitstream

import (
	"errors"
	"math"
	"strings"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/huffman"
)

// String limits, including the terminator.
const (
	MaxStringChars = 1024
	BigInfoString  = 8192
)

// Message errors.
var (
	ErrOverflow    = errors.New("bitstream: message overflowed")
	ErrReadPastEnd = errors.New("bitstream: read past end of message")
	ErrFieldCount  = errors.New("bitstream: field count exceeds table size")
)

// Codec compresses the symbols of strings written into a Message.
type Codec interface {
	EncodeSymbol(w huffman.BitWriter, sym byte)
	DecodeSymbol(r huffman.BitReader) byte
}

// Message is a fixed-capacity buffer with independent bit cursors for
// writing and reading. Values are packed least significant bit first, so a
// byte-aligned 16 or 32 bit write produces little-endian bytes.
//
// A write that does not fit sets the overflow condition and is discarded;
// the cursor never moves past the capacity. Once overflowed, all further
// writes are ignored. Reads past the written data return zero and record
// ErrReadPastEnd. Both conditions are sticky and reported by Err.
type Message struct {
	data    []byte
	bit     int // bits written; also the readable extent
	readBit int

	overflowed bool
	err        error

	// AllowOverflow marks the overflow condition as tolerated. Err then
	// ignores it and callers inspect Overflowed for diagnostics.
	AllowOverflow bool

	codec Codec
}

// New returns an empty Message with room for capacity bytes.
func New(capacity int) *Message {
	return &Message{data: make([]byte, capacity)}
}

// Init returns an empty Message that writes into buf. The capacity is
// len(buf); the buffer stays owned by the caller.
func Init(buf []byte) *Message {
	return &Message{data: buf}
}

// Wrap returns a Message for reading data. All of data is readable.
func Wrap(data []byte) *Message {
	return &Message{data: data, bit: len(data) * 8}
}

// SetCodec replaces the string codec. A nil codec restores the default.
func (m *Message) SetCodec(c Codec) {
	m.codec = c
}

func (m *Message) stringCodec() Codec {
	if m.codec == nil {
		return huffman.Default()
	}
	return m.codec
}

// Reset clears the message for writing and rewinds both cursors.
func (m *Message) Reset() {
	m.bit = 0
	m.readBit = 0
	m.overflowed = false
	m.err = nil
}

// BeginReading rewinds the read cursor to the start of the data.
func (m *Message) BeginReading() {
	m.readBit = 0
	m.err = nil
}

// Bytes returns the written data. The slice aliases the message buffer.
func (m *Message) Bytes() []byte {
	return m.data[:m.Len()]
}

// Len returns the number of bytes touched by writes.
func (m *Message) Len() int {
	return (m.bit + 7) >> 3
}

// Cap returns the capacity in bytes.
func (m *Message) Cap() int {
	return len(m.data)
}

// BitsWritten returns the write cursor position in bits.
func (m *Message) BitsWritten() int {
	return m.bit
}

// BitsRead returns the read cursor position in bits.
func (m *Message) BitsRead() int {
	return m.readBit
}

// ReadBytesConsumed returns the number of bytes touched by reads.
func (m *Message) ReadBytesConsumed() int {
	return (m.readBit + 7) >> 3
}

// Remaining returns the number of unread bits.
func (m *Message) Remaining() int {
	if m.readBit >= m.bit {
		return 0
	}
	return m.bit - m.readBit
}

// Overflowed reports whether any write was discarded for lack of space.
func (m *Message) Overflowed() bool {
	return m.overflowed
}

// Err returns the first failure recorded by the message: ErrOverflow for an
// untolerated overflow, otherwise the first read error.
func (m *Message) Err() error {
	if m.overflowed && !m.AllowOverflow {
		return ErrOverflow
	}
	return m.err
}

// Fail records err as the message's read error if none is set yet.
// Decoders built on top of Message use it to report malformed input.
func (m *Message) Fail(err error) {
	if m.err == nil {
		m.err = err
	}
}

// WriteBits writes the low bits of value. bits must be in 1..32.
func (m *Message) WriteBits(value uint32, bits int) {
	checkWidth(bits)
	if m.overflowed {
		return
	}
	if m.bit+bits > len(m.data)*8 {
		m.overflowed = true
		return
	}

	for bits > 0 {
		idx := m.bit >> 3
		off := m.bit & 7
		n := 8 - off
		if n > bits {
			n = bits
		}
		mask := byte(1<<n - 1)
		m.data[idx] = m.data[idx]&^(mask<<off) | (byte(value)&mask)<<off
		value >>= n
		bits -= n
		m.bit += n
	}
}

// ReadBits reads bits (1..32) as an unsigned value.
func (m *Message) ReadBits(bits int) uint32 {
	checkWidth(bits)
	if m.readBit+bits > m.bit {
		m.readBit = m.bit
		m.Fail(ErrReadPastEnd)
		return 0
	}

	var v uint32
	shift := 0
	for shift < bits {
		idx := m.readBit >> 3
		off := m.readBit & 7
		n := 8 - off
		if n > bits-shift {
			n = bits - shift
		}
		v |= uint32(m.data[idx]>>off&byte(1<<n-1)) << shift
		shift += n
		m.readBit += n
	}
	return v
}

// WriteSignedBits writes value in two's complement using bits bits.
func (m *Message) WriteSignedBits(value int32, bits int) {
	m.WriteBits(uint32(value), bits)
}

// ReadSignedBits reads a two's complement value and sign-extends it.
func (m *Message) ReadSignedBits(bits int) int32 {
	v := m.ReadBits(bits)
	if bits < 32 && v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}

// WriteDelta writes a single zero bit when newValue equals oldValue, and a
// one bit followed by bits bits of newValue otherwise.
func (m *Message) WriteDelta(oldValue, newValue uint32, bits int) {
	if oldValue == newValue {
		m.WriteBits(0, 1)
		return
	}
	m.WriteBits(1, 1)
	m.WriteBits(newValue, bits)
}

// ReadDelta mirrors WriteDelta.
func (m *Message) ReadDelta(oldValue uint32, bits int) uint32 {
	if m.ReadBits(1) == 0 {
		return oldValue
	}
	return m.ReadBits(bits)
}

// WriteUint8 writes 8 bits.
func (m *Message) WriteUint8(v uint8) {
	m.WriteBits(uint32(v), 8)
}

// ReadUint8 reads 8 bits.
func (m *Message) ReadUint8() uint8 {
	return uint8(m.ReadBits(8))
}

// WriteInt16 writes a 16 bit signed value.
func (m *Message) WriteInt16(v int16) {
	m.WriteBits(uint32(uint16(v)), 16)
}

// ReadInt16 reads a 16 bit signed value.
func (m *Message) ReadInt16() int16 {
	return int16(m.ReadBits(16))
}

// WriteUint16 writes a 16 bit unsigned value.
func (m *Message) WriteUint16(v uint16) {
	m.WriteBits(uint32(v), 16)
}

// ReadUint16 reads a 16 bit unsigned value.
func (m *Message) ReadUint16() uint16 {
	return uint16(m.ReadBits(16))
}

// WriteInt32 writes a 32 bit signed value.
func (m *Message) WriteInt32(v int32) {
	m.WriteBits(uint32(v), 32)
}

// ReadInt32 reads a 32 bit signed value.
func (m *Message) ReadInt32() int32 {
	return int32(m.ReadBits(32))
}

// WriteUint32 writes a 32 bit unsigned value.
func (m *Message) WriteUint32(v uint32) {
	m.WriteBits(v, 32)
}

// ReadUint32 reads a 32 bit unsigned value.
func (m *Message) ReadUint32() uint32 {
	return m.ReadBits(32)
}

// WriteFloat32 writes the IEEE 754 bits of f.
func (m *Message) WriteFloat32(f float32) {
	m.WriteBits(math.Float32bits(f), 32)
}

// ReadFloat32 reads a value written by WriteFloat32.
func (m *Message) ReadFloat32() float32 {
	return math.Float32frombits(m.ReadBits(32))
}

// WriteData writes raw bytes.
func (m *Message) WriteData(p []byte) {
	if m.overflowed {
		return
	}
	if m.bit+len(p)*8 > len(m.data)*8 {
		m.overflowed = true
		return
	}
	if m.bit&7 == 0 {
		copy(m.data[m.bit>>3:], p)
		m.bit += len(p) * 8
		return
	}
	for _, b := range p {
		m.WriteBits(uint32(b), 8)
	}
}

// ReadData reads n raw bytes. On a short read the returned slice holds
// what was available and ErrReadPastEnd is recorded.
func (m *Message) ReadData(n int) []byte {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		if m.Remaining() < 8 {
			m.readBit = m.bit
			m.Fail(ErrReadPastEnd)
			break
		}
		out = append(out, byte(m.ReadBits(8)))
	}
	return out
}

// ReadRemaining returns every unread whole byte.
func (m *Message) ReadRemaining() []byte {
	return m.ReadData(m.Remaining() / 8)
}

// WriteString writes s as a terminated, compressed string of at most
// MaxStringChars-1 characters. Longer strings are truncated.
func (m *Message) WriteString(s string) {
	m.writeString(s, MaxStringChars)
}

// ReadString reads a string written by WriteString.
func (m *Message) ReadString() string {
	return m.readString(MaxStringChars)
}

// WriteBigString is WriteString with a BigInfoString limit.
func (m *Message) WriteBigString(s string) {
	m.writeString(s, BigInfoString)
}

// ReadBigString reads a string written by WriteBigString.
func (m *Message) ReadBigString() string {
	return m.readString(BigInfoString)
}

func (m *Message) writeString(s string, limit int) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if len(s) > limit-1 {
		s = s[:limit-1]
	}
	c := m.stringCodec()
	for i := 0; i < len(s); i++ {
		c.EncodeSymbol(m, s[i])
	}
	c.EncodeSymbol(m, 0)
}

func (m *Message) readString(limit int) string {
	c := m.stringCodec()
	var b strings.Builder
	for {
		if m.Remaining() == 0 {
			m.Fail(ErrReadPastEnd)
			break
		}
		sym := c.DecodeSymbol(m)
		if m.err != nil || sym == 0 {
			break
		}
		if b.Len() < limit-1 {
			b.WriteByte(sym)
		}
	}
	return b.String()
}

func checkWidth(bits int) {
	if bits < 1 || bits > 32 {
		panic("bitstream: bit count out of range")
	}
}
