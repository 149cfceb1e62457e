package server

import (
	"io"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/demo"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// RecordingDone is called when a demo recording ends, with the writer
// given to StartRecording and the number of messages recorded.
type RecordingDone func(clientNum int, w io.Writer, frames int)

type recording struct {
	rec      *demo.Recorder
	w        io.Writer
	waiting  bool   // no full snapshot recorded yet
	minDelta uint32 // first recorded full snapshot; older frames are not in the demo
}

// StartRecording copies every message sent to c into a demo written to w.
// The demo starts with a gamestate and a full snapshot so it can be played
// back on its own.
func (s *Server) StartRecording(c *Client, w io.Writer) error {
	if c.State < StateConnected {
		return &ClientError{ClientNum: c.Num, Op: "record", Err: ErrNotConnected}
	}
	if c.recording != nil {
		return &ClientError{ClientNum: c.Num, Op: "record", Err: ErrRecording}
	}
	rec := &recording{rec: demo.NewRecorder(w), w: w, waiting: true}

	// A connected client records the gamestate when it is sent.
	if c.State >= StatePrimed {
		m := s.scratch
		m.Reset()
		m.WriteInt32(int32(c.LastClientCommand))
		s.writeGamestate(m, c)
		m.WriteUint8(uint8(protocol.SvcEOF))
		if err := m.Err(); err != nil {
			return &ClientError{ClientNum: c.Num, Op: "record", Err: err}
		}
		if err := rec.rec.WriteMessage(c.Channel.OutgoingSequence()-1, m.Bytes()); err != nil {
			return &ClientError{ClientNum: c.Num, Op: "record", Err: err}
		}
	}
	c.recording = rec
	c.logger.Info("recording started")
	return nil
}

// StopRecording ends c's demo.
func (s *Server) StopRecording(c *Client) error {
	if c.recording == nil {
		return &ClientError{ClientNum: c.Num, Op: "record", Err: ErrNotRecording}
	}
	return s.finishRecording(c)
}

func (s *Server) finishRecording(c *Client) error {
	rec := c.recording
	c.recording = nil
	err := rec.rec.Close()
	c.logger.Info("recording stopped", "frames", rec.rec.Frames(), "bytes", rec.rec.Bytes())
	if s.recordingDone != nil {
		s.recordingDone(c.Num, rec.w, rec.rec.Frames())
	}
	if err != nil {
		return &ClientError{ClientNum: c.Num, Op: "record", Err: err}
	}
	return nil
}
