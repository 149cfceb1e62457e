package demo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// ErrCorrupt is returned by Reader.Next for a frame with an impossible
// length.
var ErrCorrupt = errors.New("demo: corrupt frame")

// endMarker is written as both sequence and length after the last frame.
const endMarker = -1

// Recorder writes server messages to a demo stream.
//
// Each frame is the message sequence and the message length as
// little-endian int32 values followed by the message bytes. The stream ends
// with a frame whose sequence and length are both -1.
type Recorder struct {
	w      io.Writer
	frames int
	bytes  int64
	closed bool
}

// NewRecorder returns a Recorder writing to w. The caller keeps ownership
// of w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// WriteMessage appends one message.
func (r *Recorder) WriteMessage(seq uint32, msg []byte) error {
	if r.closed {
		return errors.New("demo: recorder closed")
	}
	if len(msg) > protocol.MaxMsgLen {
		return fmt.Errorf("%w: %d bytes", ErrCorrupt, len(msg))
	}
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], seq)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(msg)))
	if _, err := r.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("demo: write: %w", err)
	}
	if _, err := r.w.Write(msg); err != nil {
		return fmt.Errorf("demo: write: %w", err)
	}
	r.frames++
	r.bytes += int64(len(hdr) + len(msg))
	return nil
}

// Frames returns the number of messages written.
func (r *Recorder) Frames() int {
	return r.frames
}

// Bytes returns the number of bytes written so far.
func (r *Recorder) Bytes() int64 {
	return r.bytes
}

// Close writes the end marker. It does not close the underlying writer.
func (r *Recorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var hdr [8]byte
	m := int32(endMarker)
	binary.LittleEndian.PutUint32(hdr[0:], uint32(m))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(m))
	if _, err := r.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("demo: write: %w", err)
	}
	return nil
}

// Reader reads frames written by a Recorder.
type Reader struct {
	r io.Reader
}

// NewReader returns a Reader for r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next message. It returns io.EOF at the end marker or at
// a clean end of input. A stream cut inside a frame returns
// io.ErrUnexpectedEOF.
func (d *Reader) Next() (uint32, []byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("demo: read header: %w", err)
	}
	seq := binary.LittleEndian.Uint32(hdr[0:])
	n := int32(binary.LittleEndian.Uint32(hdr[4:]))
	if n == endMarker && int32(seq) == endMarker {
		return 0, nil, io.EOF
	}
	if n < 0 || int(n) > protocol.MaxMsgLen {
		return 0, nil, fmt.Errorf("%w: length %d", ErrCorrupt, n)
	}
	msg := make([]byte, n)
	if _, err := io.ReadFull(d.r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, fmt.Errorf("demo: read message %d: %w", seq, err)
	}
	return seq, msg, nil
}
