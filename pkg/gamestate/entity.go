package gamestate

import (
	"errors"
	"fmt"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
)

// Entity numbering.
const (
	GEntityNumBits = 10
	MaxGEntities   = 1 << GEntityNumBits
	EntityNumNone  = MaxGEntities - 1
	EntityNumWorld = MaxGEntities - 2
)

// ErrBadEntityNumber is recorded on a message that names an entity outside
// the valid range.
var ErrBadEntityNumber = errors.New("gamestate: entity number out of range")

// Trajectory describes how a position or angle evolves between snapshots.
type Trajectory struct {
	Type     int32
	Time     int32
	Duration int32
	Base     [3]float32
	Delta    [3]float32
}

// EntityState is the part of an entity that is sent to clients.
type EntityState struct {
	Number int32
	Type   int32
	Flags  int32

	Pos  Trajectory
	APos Trajectory

	Time  int32
	Time2 int32

	Origin  [3]float32
	Origin2 [3]float32
	Angles  [3]float32
	Angles2 [3]float32

	OtherEntityNum  int32
	OtherEntityNum2 int32
	GroundEntityNum int32

	ConstantLight int32
	LoopSound     int32
	ModelIndex    int32
	ModelIndex2   int32
	ClientNum     int32
	Frame         int32
	Solid         int32
	Event         int32
	EventParm     int32
	Powerups      int32
	Weapon        int32
	LegsAnim      int32
	TorsoAnim     int32
	Generic1      int32
}

// entityFieldList is ordered by how often each field changes in play.
// Priorities are assigned from that order by prioritize.
func entityFieldList() []bitstream.Field[EntityState] {
	type es = EntityState
	i := bitstream.IntField[es]
	f := bitstream.FloatField[es]
	return []bitstream.Field[es]{
		i("pos.trTime", 32, 0, func(s *es) *int32 { return &s.Pos.Time }),
		f("pos.trBase[0]", 0, func(s *es) *float32 { return &s.Pos.Base[0] }),
		f("pos.trBase[1]", 0, func(s *es) *float32 { return &s.Pos.Base[1] }),
		f("pos.trDelta[0]", 0, func(s *es) *float32 { return &s.Pos.Delta[0] }),
		f("pos.trDelta[1]", 0, func(s *es) *float32 { return &s.Pos.Delta[1] }),
		f("pos.trBase[2]", 0, func(s *es) *float32 { return &s.Pos.Base[2] }),
		f("apos.trBase[1]", 0, func(s *es) *float32 { return &s.APos.Base[1] }),
		f("pos.trDelta[2]", 0, func(s *es) *float32 { return &s.Pos.Delta[2] }),
		f("apos.trBase[0]", 0, func(s *es) *float32 { return &s.APos.Base[0] }),
		i("event", 10, 0, func(s *es) *int32 { return &s.Event }),
		f("angles2[1]", 0, func(s *es) *float32 { return &s.Angles2[1] }),
		i("eType", 8, 0, func(s *es) *int32 { return &s.Type }),
		i("torsoAnim", 8, 0, func(s *es) *int32 { return &s.TorsoAnim }),
		i("eventParm", 8, 0, func(s *es) *int32 { return &s.EventParm }),
		i("legsAnim", 8, 0, func(s *es) *int32 { return &s.LegsAnim }),
		i("groundEntityNum", GEntityNumBits, 0, func(s *es) *int32 { return &s.GroundEntityNum }),
		i("pos.trType", 8, 0, func(s *es) *int32 { return &s.Pos.Type }),
		i("eFlags", 19, 0, func(s *es) *int32 { return &s.Flags }),
		i("otherEntityNum", GEntityNumBits, 0, func(s *es) *int32 { return &s.OtherEntityNum }),
		i("weapon", 8, 0, func(s *es) *int32 { return &s.Weapon }),
		i("clientNum", 8, 0, func(s *es) *int32 { return &s.ClientNum }),
		f("angles[1]", 0, func(s *es) *float32 { return &s.Angles[1] }),
		i("pos.trDuration", 32, 0, func(s *es) *int32 { return &s.Pos.Duration }),
		i("apos.trType", 8, 0, func(s *es) *int32 { return &s.APos.Type }),
		f("origin[0]", 0, func(s *es) *float32 { return &s.Origin[0] }),
		f("origin[1]", 0, func(s *es) *float32 { return &s.Origin[1] }),
		f("origin[2]", 0, func(s *es) *float32 { return &s.Origin[2] }),
		i("solid", 24, 0, func(s *es) *int32 { return &s.Solid }),
		i("powerups", MaxPowerups, 0, func(s *es) *int32 { return &s.Powerups }),
		i("modelindex", 8, 0, func(s *es) *int32 { return &s.ModelIndex }),
		i("otherEntityNum2", GEntityNumBits, 0, func(s *es) *int32 { return &s.OtherEntityNum2 }),
		i("loopSound", 8, 0, func(s *es) *int32 { return &s.LoopSound }),
		i("generic1", 8, 0, func(s *es) *int32 { return &s.Generic1 }),
		f("origin2[2]", 0, func(s *es) *float32 { return &s.Origin2[2] }),
		f("origin2[0]", 0, func(s *es) *float32 { return &s.Origin2[0] }),
		f("origin2[1]", 0, func(s *es) *float32 { return &s.Origin2[1] }),
		i("modelindex2", 8, 0, func(s *es) *int32 { return &s.ModelIndex2 }),
		f("angles[0]", 0, func(s *es) *float32 { return &s.Angles[0] }),
		i("time", 32, 0, func(s *es) *int32 { return &s.Time }),
		i("apos.trTime", 32, 0, func(s *es) *int32 { return &s.APos.Time }),
		i("apos.trDuration", 32, 0, func(s *es) *int32 { return &s.APos.Duration }),
		f("apos.trBase[2]", 0, func(s *es) *float32 { return &s.APos.Base[2] }),
		f("apos.trDelta[0]", 0, func(s *es) *float32 { return &s.APos.Delta[0] }),
		f("apos.trDelta[1]", 0, func(s *es) *float32 { return &s.APos.Delta[1] }),
		f("apos.trDelta[2]", 0, func(s *es) *float32 { return &s.APos.Delta[2] }),
		i("time2", 32, 0, func(s *es) *int32 { return &s.Time2 }),
		f("angles[2]", 0, func(s *es) *float32 { return &s.Angles[2] }),
		f("angles2[0]", 0, func(s *es) *float32 { return &s.Angles2[0] }),
		f("angles2[2]", 0, func(s *es) *float32 { return &s.Angles2[2] }),
		i("constantLight", 32, 0, func(s *es) *int32 { return &s.ConstantLight }),
		i("frame", 16, 0, func(s *es) *int32 { return &s.Frame }),
	}
}

// WriteDeltaEntity encodes to against from.
//
// A nil to writes a removal marker for from. When nothing changed and
// force is false nothing is written at all, so the receiver keeps its copy.
// Otherwise the entity number, a zero removed bit and the field delta are
// written.
func (t *Tables) WriteDeltaEntity(m *bitstream.Message, from, to *EntityState, force bool) {
	if to == nil {
		if from == nil {
			return
		}
		m.WriteBits(uint32(from.Number), GEntityNumBits)
		m.WriteBits(1, 1)
		return
	}
	if to.Number < 0 || to.Number >= MaxGEntities {
		panic(fmt.Sprintf("gamestate: entity number %d out of range", to.Number))
	}

	var zero EntityState
	if from == nil {
		from = &zero
	}
	if !force && !t.Entity.Changed(from, to) {
		return
	}

	m.WriteBits(uint32(to.Number), GEntityNumBits)
	m.WriteBits(0, 1)
	bitstream.WriteDeltaFields(m, t.Entity, from, to)
}

// ReadDeltaEntity reads the remainder of an entity record whose number the
// caller has already read. It reports removed for a removal marker.
func (t *Tables) ReadDeltaEntity(m *bitstream.Message, from *EntityState, number int) (to EntityState, removed bool) {
	if number < 0 || number >= MaxGEntities {
		m.Fail(ErrBadEntityNumber)
		return EntityState{Number: EntityNumNone}, true
	}
	if m.ReadBits(1) == 1 {
		return EntityState{Number: EntityNumNone}, true
	}

	var zero EntityState
	if from == nil {
		from = &zero
	}
	bitstream.ReadDeltaFields(m, t.Entity, from, &to)
	to.Number = int32(number)
	return to, false
}
