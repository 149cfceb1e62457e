// Package bitstream implements the bit-packed message buffer that every
// network message is built and parsed with.
//
// # Layout
//
// Values are written least significant bit first into a fixed-capacity byte
// buffer. An aligned 32 bit value therefore appears on the wire as four
// little-endian bytes, which is what the packet header relies on.
//
// # Failure Model
//
// A Message never writes outside its buffer. A write that does not fit
// marks the message overflowed and is dropped, as are all later writes.
// Reads past the written extent return zero and record ErrReadPastEnd.
// Both conditions are sticky and surface through Err, so a caller can
// encode or decode a whole record and check once:
//
//	msg := bitstream.New(protocol.MaxMsgLen)
//	msg.WriteBits(7, 3)
//	msg.WriteString("hello")
//	if err := msg.Err(); err != nil {
//		// tear down the connection
//	}
//
// Setting AllowOverflow tolerates overflow: Err ignores it and the caller
// can still inspect Overflowed.
//
// # Strings
//
// Strings are null terminated and every byte, terminator included, goes
// through a Codec. The default is the static Huffman code from package
// huffman.
//
// # Delta Records
//
// FieldTable describes a record type as an ordered list of typed accessors.
// WriteDeltaFields sends only the fields that differ from a reference
// record, and ReadDeltaFields rebuilds the record from the same reference.
package bitstream
