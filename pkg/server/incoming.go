package server

import (
	"context"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// ProcessIncoming handles one sequenced packet from c.
//
// Message layout: server id, last server message received, last reliable
// server command executed, then client ops up to ClcEOF. Messages carrying
// a stale server id are only used for their acknowledgements; if such a
// client has received messages newer than its gamestate, the gamestate was
// lost and is sent again.
func (s *Server) ProcessIncoming(ctx context.Context, c *Client, packet []byte) error {
	if c.State < StateConnected {
		return &ClientError{ClientNum: c.Num, Op: "process", Err: ErrNotConnected}
	}
	data, res := c.Channel.Process(packet)
	if res != netchan.Delivered {
		return nil
	}
	c.LastPacketTime = s.time

	m := bitstream.Wrap(data)
	serverID := m.ReadInt32()
	messageAck := uint32(m.ReadInt32())
	reliableAck := uint32(m.ReadInt32())
	if m.Err() != nil {
		return s.drop(c, "process", protocol.ReasonIllegibleMessage)
	}
	if err := c.commands.Acknowledge(reliableAck); err != nil {
		c.logger.Warn("invalid reliable acknowledge", "ack", reliableAck, "sequence", c.commands.Sequence())
		return s.drop(c, "process", protocol.ReasonIllegibleMessage)
	}
	s.acknowledgeMessage(c, messageAck)

	if serverID != s.serverID {
		if c.State >= StatePrimed && protocol.SequenceGreater(messageAck, c.GamestateMessageNum) {
			c.logger.Debug("gamestate lost, resending", "ack", messageAck, "gamestate", c.GamestateMessageNum)
			c.State = StateConnected
		}
		return nil
	}
	return s.executeOps(c, m)
}

// acknowledgeMessage records the newest server message c received and
// measures ping from the matching frame.
func (s *Server) acknowledgeMessage(c *Client, ack uint32) {
	if protocol.SequenceGreater(ack, c.Channel.OutgoingSequence()) {
		return
	}
	c.MessageAcknowledge = ack
	if f, ok := c.frames.Get(ack); ok && !f.acked {
		f.acked = true
		c.Ping = int(s.time - f.SentTime)
	}
}

func (s *Server) executeOps(c *Client, m *bitstream.Message) error {
	for {
		op := protocol.ClcOp(m.ReadUint8())
		if m.Err() != nil {
			return s.drop(c, "process", protocol.ReasonIllegibleMessage)
		}
		switch op {
		case protocol.ClcEOF:
			return nil
		case protocol.ClcNop:
		case protocol.ClcClientCommand:
			if err := s.clientCommand(c, m); err != nil {
				return err
			}
		case protocol.ClcMove, protocol.ClcMoveNoDelta:
			if err := s.userMove(c, m, op == protocol.ClcMoveNoDelta); err != nil {
				return err
			}
		default:
			c.logger.Warn("unknown client op", "op", uint8(op))
			return s.drop(c, "process", protocol.ReasonIllegibleMessage)
		}
		if c.State < StateConnected {
			return nil
		}
	}
}

// clientCommand executes a reliable client command exactly once. Commands
// already executed are skipped; a gap means commands were lost for good.
func (s *Server) clientCommand(c *Client, m *bitstream.Message) error {
	seq := uint32(m.ReadInt32())
	text := m.ReadString()
	if m.Err() != nil {
		return s.drop(c, "command", protocol.ReasonIllegibleMessage)
	}
	if !protocol.SequenceGreater(seq, c.LastClientCommand) {
		return nil
	}
	if seq != c.LastClientCommand+1 {
		c.logger.Warn("client command gap", "last", c.LastClientCommand, "got", seq)
		return s.drop(c, "command", protocol.ReasonLostCommands)
	}
	c.LastClientCommand = seq
	s.executeClientCommand(c, text)
	return nil
}

// userMove reads a batch of usercmds. Each is delta encoded from the one
// before it; the first from zero.
func (s *Server) userMove(c *Client, m *bitstream.Message, noDelta bool) error {
	count := int(m.ReadUint8())
	if count < 1 || count > gamestate.MaxPacketUsercmds {
		return s.drop(c, "move", protocol.ReasonIllegibleMessage)
	}
	cmds := c.cmdBuf[:count]
	var from *gamestate.UserCmd
	for i := range cmds {
		cmds[i] = s.tables.ReadDeltaUsercmd(m, from)
		from = &cmds[i]
	}
	if m.Err() != nil {
		return s.drop(c, "move", protocol.ReasonIllegibleMessage)
	}

	if noDelta {
		c.DeltaMessage = -1
	} else {
		c.DeltaMessage = int64(c.MessageAcknowledge)
	}
	if c.State == StatePrimed {
		s.enterWorld(c)
	}
	if c.State != StateActive {
		return nil
	}

	for _, cmd := range cmds {
		if cmd.ServerTime <= c.lastUsercmd.ServerTime {
			continue
		}
		if s.game != nil {
			s.game.ClientThink(c.Num, cmd)
		}
		c.lastUsercmd = cmd
	}
	return nil
}

func (s *Server) enterWorld(c *Client) {
	c.State = StateActive
	c.DeltaMessage = -1
	c.lastUsercmd = gamestate.UserCmd{}
	c.logger.Info("client entered the world", "name", c.Name)
	if s.game != nil {
		s.game.ClientBegin(c.Num)
	}
}
