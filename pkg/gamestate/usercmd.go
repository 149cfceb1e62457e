package gamestate

import "github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"

// MaxPacketUsercmds is the most commands a single client message carries.
const MaxPacketUsercmds = 32

// UserCmd is one frame of client input. The server only forwards it to the
// game; interpreting it is not this package's business.
type UserCmd struct {
	ServerTime  int32
	Angles      [3]int32
	Buttons     int32
	Weapon      int32
	ForwardMove int32
	RightMove   int32
	UpMove      int32
}

func usercmdFieldList() []bitstream.Field[UserCmd] {
	type uc = UserCmd
	i := bitstream.IntField[uc]
	s := bitstream.SignedField[uc]
	return []bitstream.Field[uc]{
		i("serverTime", 32, 0, func(c *uc) *int32 { return &c.ServerTime }),
		s("angles[0]", 16, 0, func(c *uc) *int32 { return &c.Angles[0] }),
		s("angles[1]", 16, 0, func(c *uc) *int32 { return &c.Angles[1] }),
		s("angles[2]", 16, 0, func(c *uc) *int32 { return &c.Angles[2] }),
		s("forwardmove", 8, 0, func(c *uc) *int32 { return &c.ForwardMove }),
		s("rightmove", 8, 0, func(c *uc) *int32 { return &c.RightMove }),
		s("upmove", 8, 0, func(c *uc) *int32 { return &c.UpMove }),
		i("buttons", 16, 0, func(c *uc) *int32 { return &c.Buttons }),
		i("weapon", 8, 0, func(c *uc) *int32 { return &c.Weapon }),
	}
}

// WriteDeltaUsercmd encodes to against from. A nil from means the zero
// command.
func (t *Tables) WriteDeltaUsercmd(m *bitstream.Message, from, to *UserCmd) {
	var zero UserCmd
	if from == nil {
		from = &zero
	}
	bitstream.WriteDeltaFields(m, t.Usercmd, from, to)
}

// ReadDeltaUsercmd mirrors WriteDeltaUsercmd.
func (t *Tables) ReadDeltaUsercmd(m *bitstream.Message, from *UserCmd) UserCmd {
	var zero, to UserCmd
	if from == nil {
		from = &zero
	}
	bitstream.ReadDeltaFields(m, t.Usercmd, from, &to)
	return to
}
