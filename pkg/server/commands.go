package server

import (
	"errors"
	"strings"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/reliable"
)

// AddServerCommand queues text as a reliable command for c. A nil c sends
// it to every primed client. A client whose window of unacknowledged
// commands is full is dropped.
func (s *Server) AddServerCommand(c *Client, text string) error {
	if c == nil {
		var errs []error
		for _, cl := range s.clients {
			if cl.State < StatePrimed {
				continue
			}
			if err := s.AddServerCommand(cl, text); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	if c.State < StateConnected {
		return &ClientError{ClientNum: c.Num, Op: "command", Err: ErrNotConnected}
	}
	if _, err := c.commands.Append(text); err != nil {
		c.logger.Warn("reliable command window exhausted", "pending", c.commands.Pending())
		return s.drop(c, "command", protocol.ReasonTooManyCommands)
	}
	s.metrics.ReliableCommandQueued()
	return nil
}

// sendDisconnect sends c a last message carrying its pending commands and
// a disconnect command with reason. The disconnect uses the sequence after
// the last queued command even when the window is full.
func (s *Server) sendDisconnect(c *Client, reason string) {
	if c.Channel == nil || c.Channel.UnsentFragments() {
		return
	}
	final := reliable.Command{
		Sequence: c.commands.Sequence() + 1,
		Text:     "disconnect " + protocol.Quote(reason),
	}

	m := s.msg
	m.Reset()
	m.WriteInt32(int32(c.LastClientCommand))
	s.writeCommands(m, c)
	writeServerCommand(m, final)
	m.WriteUint8(uint8(protocol.SvcEOF))
	if m.Err() != nil {
		m.Reset()
		m.WriteInt32(int32(c.LastClientCommand))
		writeServerCommand(m, final)
		m.WriteUint8(uint8(protocol.SvcEOF))
	}
	if err := s.transmit(c, m.Bytes()); err != nil {
		c.logger.Debug("disconnect not sent", "error", err)
	}
}

// executeClientCommand runs one reliable client command.
func (s *Server) executeClientCommand(c *Client, text string) {
	args := protocol.Tokenize(text)
	if len(args) == 0 {
		return
	}
	switch strings.ToLower(args[0]) {
	case "disconnect":
		s.DropClient(c, protocol.ReasonClientQuit)
	case "userinfo":
		if len(args) > 1 {
			c.Userinfo = protocol.ParseInfo(args[1])
			c.applyUserinfo(s.cfg)
		}
	default:
		if c.State == StateActive && s.game != nil {
			s.game.ClientCommand(c.Num, args)
		}
	}
}
