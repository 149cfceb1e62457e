package server

import (
	"fmt"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Reserved configstring indexes.
const (
	CSServerInfo = 0
	CSSystemInfo = 1
)

// bigConfigstringChunk is the longest configstring sent as a single "cs"
// command; longer values are split into bcs0/bcs1/bcs2 pieces.
const bigConfigstringChunk = 1000

// Configstring returns the value at index.
func (s *Server) Configstring(index int) string {
	if index < 0 || index >= protocol.MaxConfigstrings {
		return ""
	}
	return s.configstrings[index]
}

// SetConfigstring stores value at index and sends the change to every
// primed client. Clients still connecting get it with their gamestate.
func (s *Server) SetConfigstring(index int, value string) error {
	if index < 0 || index >= protocol.MaxConfigstrings {
		return fmt.Errorf("%w: %d", ErrBadConfigstring, index)
	}
	if s.configstrings[index] == value {
		return nil
	}
	s.configstrings[index] = value

	for _, c := range s.clients {
		if c.State >= StatePrimed {
			s.sendConfigstring(c, index, value)
		}
	}
	return nil
}

func (s *Server) sendConfigstring(c *Client, index int, value string) {
	if len(value) <= bigConfigstringChunk {
		s.AddServerCommand(c, fmt.Sprintf("cs %d %s", index, protocol.Quote(value)))
		return
	}
	for start := 0; start < len(value); start += bigConfigstringChunk {
		end := min(start+bigConfigstringChunk, len(value))
		cmd := "bcs1"
		switch {
		case start == 0:
			cmd = "bcs0"
		case end == len(value):
			cmd = "bcs2"
		}
		if err := s.AddServerCommand(c, fmt.Sprintf("%s %d %s", cmd, index, protocol.Quote(value[start:end]))); err != nil {
			return
		}
	}
}

// sendGamestate sends the full configstring and baseline set and moves c
// to StatePrimed. Pending reliable commands travel first in the same
// message.
func (s *Server) sendGamestate(c *Client) error {
	m := s.msg
	m.Reset()
	m.WriteInt32(int32(c.LastClientCommand))
	s.writeCommands(m, c)
	s.writeGamestate(m, c)
	m.WriteUint8(uint8(protocol.SvcEOF))
	if m.Err() != nil {
		s.metrics.MessageOverflow()
		return s.drop(c, "gamestate", protocol.ReasonMessageOverflow)
	}

	c.GamestateMessageNum = c.Channel.OutgoingSequence()
	c.State = StatePrimed
	c.DeltaMessage = -1
	c.NextSnapshotTime = s.time
	c.frames.Clear()
	c.logger.Debug("gamestate sent", "seq", c.GamestateMessageNum, "bytes", m.Len())

	if err := s.transmit(c, m.Bytes()); err != nil {
		return &ClientError{ClientNum: c.Num, Op: "gamestate", Err: err}
	}
	return nil
}

// writeGamestate writes the gamestate block.
//
// Layout: op, last server command sequence, then configstrings and
// baselines, then EOF followed by the client number and the server id.
func (s *Server) writeGamestate(m *bitstream.Message, c *Client) {
	m.WriteUint8(uint8(protocol.SvcGamestate))
	m.WriteInt32(int32(c.commands.Sequence()))

	for i, cs := range s.configstrings {
		if cs == "" {
			continue
		}
		m.WriteUint8(uint8(protocol.SvcConfigstring))
		m.WriteUint16(uint16(i))
		m.WriteBigString(cs)
	}

	n := min(s.world.EntityCount(), gamestate.EntityNumWorld)
	for num := 0; num < n; num++ {
		bl, ok := s.world.Baseline(num)
		if !ok {
			continue
		}
		bl.Number = int32(num)
		m.WriteUint8(uint8(protocol.SvcBaseline))
		s.tables.WriteDeltaEntity(m, nil, &bl, true)
	}

	m.WriteUint8(uint8(protocol.SvcEOF))
	m.WriteInt32(int32(c.Num))
	m.WriteInt32(s.serverID)
}
