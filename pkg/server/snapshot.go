package server

import (
	"context"
	"errors"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/reliable"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/telemetry"
)

// SendClientMessages sends this frame's message to every connected
// client: the gamestate to clients that need one, a snapshot to the rest
// when their rate allows, or the next fragment of a paced message.
func (s *Server) SendClientMessages(ctx context.Context) error {
	var errs []error
	for _, c := range s.clients {
		if c.State < StateConnected || c.Channel == nil {
			continue
		}
		if c.Channel.UnsentFragments() {
			if err := c.Channel.TransmitNextFragment(); err != nil {
				errs = append(errs, &ClientError{ClientNum: c.Num, Op: "fragment", Err: err})
			}
			c.RateDelayed = true
			continue
		}
		if c.State == StateConnected {
			if err := s.sendGamestate(c); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if s.time < c.NextSnapshotTime {
			if c.rateBound && !c.RateDelayed {
				c.RateDelayed = true
				s.metrics.SnapshotRateDelayed()
			}
			continue
		}
		if err := s.SendClientSnapshot(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendClientSnapshot builds c's view of the world, encodes it against the
// newest frame c acknowledged and transmits it together with the reliable
// commands c has not acknowledged yet.
func (s *Server) SendClientSnapshot(ctx context.Context, c *Client) error {
	if c.State < StateConnected {
		return &ClientError{ClientNum: c.Num, Op: "snapshot", Err: ErrNotConnected}
	}
	_, span := s.tracer.StartSnapshot(ctx, telemetry.SnapshotInfo{
		Client:     c.Num,
		Address:    c.Address().String(),
		MessageNum: c.Channel.OutgoingSequence(),
	})
	res, err := s.sendSnapshot(c)
	telemetry.EndSnapshot(span, res, err)
	return err
}

func (s *Server) sendSnapshot(c *Client) (telemetry.SnapshotResult, error) {
	var res telemetry.SnapshotResult
	frame := s.buildFrame(c)
	base, deltaNum := s.deltaBase(c)

	m := s.msg
	m.Reset()
	m.WriteInt32(int32(c.LastClientCommand))
	s.writeSnapshot(m, base, frame, deltaNum)
	s.writeCommands(m, c)
	m.WriteUint8(uint8(protocol.SvcEOF))
	if m.Err() != nil {
		s.metrics.MessageOverflow()
		return res, s.drop(c, "snapshot", protocol.ReasonMessageOverflow)
	}

	seq := c.Channel.OutgoingSequence()
	frame.Sequence = seq
	frame.SentTime = s.time
	frame.Bytes = m.Len()
	if err := s.transmit(c, m.Bytes()); err != nil {
		return res, &ClientError{ClientNum: c.Num, Op: "snapshot", Err: err}
	}
	c.frames.Add(frame)
	if rec := c.recording; rec != nil && base == nil && rec.waiting {
		rec.waiting = false
		rec.minDelta = seq
	}
	s.scheduleSnapshot(c, frame.Bytes)

	s.metrics.SnapshotSent(frame.Bytes, len(frame.Entities), base != nil)
	res = telemetry.SnapshotResult{Bytes: frame.Bytes, Entities: len(frame.Entities), DeltaNum: uint32(deltaNum)}
	return res, nil
}

// buildFrame collects what c can see this frame.
func (s *Server) buildFrame(c *Client) *Frame {
	f := &Frame{
		ServerTime:  s.world.Time(),
		PlayerState: s.world.PlayerState(c.Num),
	}
	if c.RateDelayed {
		f.Flags |= protocol.SnapFlagRateDelayed
		c.RateDelayed = false
	}
	if c.State != StateActive {
		f.Flags |= protocol.SnapFlagNotActive
	}

	var truncated int
	f.Entities, truncated = s.visibleEntities(c, &f.PlayerState)
	if truncated > 0 {
		s.metrics.EntitiesTruncated(truncated)
		c.logger.Debug("snapshot entities truncated", "dropped", truncated, "max", s.cfg.MaxSnapshotEntities)
	}
	return f
}

// visibleEntities returns the entities c can see, sorted by number and
// capped at MaxSnapshotEntities. The highest numbers are cut first; the
// second result counts them.
func (s *Server) visibleEntities(c *Client, viewer *gamestate.PlayerState) ([]gamestate.EntityState, int) {
	n := min(s.world.EntityCount(), gamestate.EntityNumWorld)
	ents := make([]gamestate.EntityState, 0, min(n, s.cfg.MaxSnapshotEntities))
	truncated := 0
	for num := 0; num < n; num++ {
		e, ok := s.world.Entity(num)
		if !ok || !s.entityVisible(c, viewer, num, &e) {
			continue
		}
		if len(ents) == s.cfg.MaxSnapshotEntities {
			truncated++
			continue
		}
		st := e.State
		st.Number = int32(num)
		ents = append(ents, st)
	}
	return ents, truncated
}

func (s *Server) entityVisible(c *Client, viewer *gamestate.PlayerState, num int, e *Entity) bool {
	if e.Flags&FlagNoClient != 0 {
		return false
	}
	if e.Flags&FlagSingleClient != 0 && e.SingleClient != c.Num {
		return false
	}
	if e.Flags&FlagNotSingleClient != 0 && e.SingleClient == c.Num {
		return false
	}
	if e.Flags&(FlagBroadcast|FlagPortal|FlagVisDummy) != 0 {
		return true
	}
	return s.world.Visible(c.Num, viewer, num)
}

// deltaBase picks the frame to delta encode from. A nil frame means the
// snapshot goes out in full against the world baselines.
func (s *Server) deltaBase(c *Client) (*Frame, uint8) {
	if c.State != StateActive || c.DeltaMessage <= 0 {
		return nil, 0
	}
	ack := uint32(c.DeltaMessage)
	if rec := c.recording; rec != nil && (rec.waiting || protocol.SequenceLess(ack, rec.minDelta)) {
		return nil, 0
	}
	age := protocol.SequenceDiff(c.Channel.OutgoingSequence(), ack)
	if age <= 0 || age >= protocol.PacketBackup-3 {
		return nil, 0
	}
	f, ok := c.frames.Get(ack)
	if !ok {
		return nil, 0
	}
	return f, uint8(age)
}

// writeSnapshot encodes frame against base.
//
// Layout: op, server time, delta distance (0 for a full snapshot), flags,
// player state delta, entity deltas ending with EntityNumNone.
func (s *Server) writeSnapshot(m *bitstream.Message, base, frame *Frame, deltaNum uint8) {
	m.WriteUint8(uint8(protocol.SvcSnapshot))
	m.WriteInt32(frame.ServerTime)
	m.WriteUint8(deltaNum)
	m.WriteUint8(uint8(frame.Flags))

	var fromPS *gamestate.PlayerState
	var old []gamestate.EntityState
	if base != nil {
		fromPS = &base.PlayerState
		old = base.Entities
	}
	s.tables.WriteDeltaPlayerstate(m, fromPS, &frame.PlayerState)
	s.writeEntities(m, old, frame.Entities)
}

// writeEntities walks the sorted old and new entity lists together.
// Entities in both are delta encoded, new ones are sent in full against
// their baseline and vanished ones get a removal marker.
func (s *Server) writeEntities(m *bitstream.Message, old, cur []gamestate.EntityState) {
	i, j := 0, 0
	for i < len(old) || j < len(cur) {
		oldNum, newNum := int32(gamestate.MaxGEntities), int32(gamestate.MaxGEntities)
		if i < len(old) {
			oldNum = old[i].Number
		}
		if j < len(cur) {
			newNum = cur[j].Number
		}
		switch {
		case oldNum == newNum:
			s.tables.WriteDeltaEntity(m, &old[i], &cur[j], false)
			i++
			j++
		case newNum < oldNum:
			bl := s.baseline(newNum)
			s.tables.WriteDeltaEntity(m, &bl, &cur[j], true)
			j++
		default:
			s.tables.WriteDeltaEntity(m, &old[i], nil, true)
			i++
		}
	}
	m.WriteBits(gamestate.EntityNumNone, gamestate.GEntityNumBits)
}

func (s *Server) baseline(num int32) gamestate.EntityState {
	bl, ok := s.world.Baseline(int(num))
	if !ok {
		bl = gamestate.EntityState{}
	}
	bl.Number = num
	return bl
}

// writeCommands appends c's unacknowledged reliable commands while they
// fit, keeping room for the end marker. The rest go with a later message.
func (s *Server) writeCommands(m *bitstream.Message, c *Client) {
	for _, cmd := range c.commands.CommandsSince(c.commands.Acknowledged()) {
		s.scratch.Reset()
		writeServerCommand(s.scratch, cmd)
		if m.BitsWritten()+s.scratch.BitsWritten()+8 > m.Cap()*8 {
			return
		}
		writeServerCommand(m, cmd)
	}
}

func writeServerCommand(m *bitstream.Message, cmd reliable.Command) {
	m.WriteUint8(uint8(protocol.SvcServerCommand))
	m.WriteInt32(int32(cmd.Sequence))
	m.WriteString(cmd.Text)
}

// scheduleSnapshot sets the earliest time of c's next snapshot from its
// snapshot interval and the time its rate needs to carry n bytes.
func (s *Server) scheduleSnapshot(c *Client, n int) {
	wait := c.SnapshotMsec
	c.rateBound = false
	if rate := s.clientRate(c); rate > 0 {
		rateMsec := int32((n + s.cfg.HeaderRateBytes) * 1000 / rate)
		if rateMsec > wait {
			wait = rateMsec
			c.rateBound = true
		}
	}
	c.NextSnapshotTime = s.time + wait
}

// clientRate returns c's rate in bytes per second, or 0 for no limit.
func (s *Server) clientRate(c *Client) int {
	if c.Address().IsLAN() {
		return 0
	}
	return c.Rate
}

// transmit sends data to c and copies it into c's demo.
func (s *Server) transmit(c *Client, data []byte) error {
	if c.recording != nil {
		if err := c.recording.rec.WriteMessage(c.Channel.OutgoingSequence(), data); err != nil {
			c.logger.Warn("demo write failed", "error", err)
			s.finishRecording(c)
		}
	}
	return c.Channel.Transmit(data)
}
