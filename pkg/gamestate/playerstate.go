package gamestate

import "github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"

// Player state array sizes.
const (
	MaxStats      = 16
	MaxPersistant = 16
	MaxWeapons    = 16
	MaxPowerups   = 16
	MaxPSEvents   = 2
)

// PlayerState is the per-client record that drives the client's own view.
type PlayerState struct {
	CommandTime int32
	PMType      int32
	PMFlags     int32
	PMTime      int32
	BobCycle    int32

	Origin      [3]float32
	Velocity    [3]float32
	ViewAngles  [3]float32
	DeltaAngles [3]int32

	WeaponTime      int32
	Gravity         int32
	Speed           int32
	GroundEntityNum int32

	LegsTimer   int32
	LegsAnim    int32
	TorsoTimer  int32
	TorsoAnim   int32
	MovementDir int32
	Flags       int32

	EventSequence     int32
	Events            [MaxPSEvents]int32
	EventParms        [MaxPSEvents]int32
	ExternalEvent     int32
	ExternalEventParm int32

	ClientNum   int32
	Weapon      int32
	WeaponState int32
	ViewHeight  int32

	DamageEvent int32
	DamageYaw   int32
	DamagePitch int32
	DamageCount int32

	Generic1  int32
	LoopSound int32

	Stats      [MaxStats]int32
	Persistant [MaxPersistant]int32
	Ammo       [MaxWeapons]int32
	Powerups   [MaxPowerups]int32
}

func playerFieldList() []bitstream.Field[PlayerState] {
	type ps = PlayerState
	i := bitstream.IntField[ps]
	s := bitstream.SignedField[ps]
	f := bitstream.FloatField[ps]
	return []bitstream.Field[ps]{
		i("commandTime", 32, 0, func(p *ps) *int32 { return &p.CommandTime }),
		f("origin[0]", 0, func(p *ps) *float32 { return &p.Origin[0] }),
		f("origin[1]", 0, func(p *ps) *float32 { return &p.Origin[1] }),
		i("bobCycle", 8, 0, func(p *ps) *int32 { return &p.BobCycle }),
		f("velocity[0]", 0, func(p *ps) *float32 { return &p.Velocity[0] }),
		f("velocity[1]", 0, func(p *ps) *float32 { return &p.Velocity[1] }),
		f("viewangles[1]", 0, func(p *ps) *float32 { return &p.ViewAngles[1] }),
		f("viewangles[0]", 0, func(p *ps) *float32 { return &p.ViewAngles[0] }),
		s("weaponTime", 16, 0, func(p *ps) *int32 { return &p.WeaponTime }),
		f("origin[2]", 0, func(p *ps) *float32 { return &p.Origin[2] }),
		f("velocity[2]", 0, func(p *ps) *float32 { return &p.Velocity[2] }),
		i("legsTimer", 8, 0, func(p *ps) *int32 { return &p.LegsTimer }),
		s("pm_time", 16, 0, func(p *ps) *int32 { return &p.PMTime }),
		i("eventSequence", 16, 0, func(p *ps) *int32 { return &p.EventSequence }),
		i("torsoAnim", 8, 0, func(p *ps) *int32 { return &p.TorsoAnim }),
		i("movementDir", 4, 0, func(p *ps) *int32 { return &p.MovementDir }),
		i("events[0]", 8, 0, func(p *ps) *int32 { return &p.Events[0] }),
		i("legsAnim", 8, 0, func(p *ps) *int32 { return &p.LegsAnim }),
		i("events[1]", 8, 0, func(p *ps) *int32 { return &p.Events[1] }),
		i("pm_flags", 16, 0, func(p *ps) *int32 { return &p.PMFlags }),
		i("groundEntityNum", GEntityNumBits, 0, func(p *ps) *int32 { return &p.GroundEntityNum }),
		i("weaponstate", 4, 0, func(p *ps) *int32 { return &p.WeaponState }),
		i("eFlags", 16, 0, func(p *ps) *int32 { return &p.Flags }),
		i("externalEvent", 10, 0, func(p *ps) *int32 { return &p.ExternalEvent }),
		i("gravity", 16, 0, func(p *ps) *int32 { return &p.Gravity }),
		i("speed", 16, 0, func(p *ps) *int32 { return &p.Speed }),
		s("delta_angles[1]", 16, 0, func(p *ps) *int32 { return &p.DeltaAngles[1] }),
		i("externalEventParm", 8, 0, func(p *ps) *int32 { return &p.ExternalEventParm }),
		s("viewheight", 8, 0, func(p *ps) *int32 { return &p.ViewHeight }),
		i("damageEvent", 8, 0, func(p *ps) *int32 { return &p.DamageEvent }),
		i("damageYaw", 8, 0, func(p *ps) *int32 { return &p.DamageYaw }),
		i("damagePitch", 8, 0, func(p *ps) *int32 { return &p.DamagePitch }),
		i("damageCount", 8, 0, func(p *ps) *int32 { return &p.DamageCount }),
		i("generic1", 8, 0, func(p *ps) *int32 { return &p.Generic1 }),
		i("pm_type", 8, 0, func(p *ps) *int32 { return &p.PMType }),
		s("delta_angles[0]", 16, 0, func(p *ps) *int32 { return &p.DeltaAngles[0] }),
		s("delta_angles[2]", 16, 0, func(p *ps) *int32 { return &p.DeltaAngles[2] }),
		i("torsoTimer", 12, 0, func(p *ps) *int32 { return &p.TorsoTimer }),
		i("eventParms[0]", 8, 0, func(p *ps) *int32 { return &p.EventParms[0] }),
		i("eventParms[1]", 8, 0, func(p *ps) *int32 { return &p.EventParms[1] }),
		i("clientNum", 8, 0, func(p *ps) *int32 { return &p.ClientNum }),
		i("weapon", 5, 0, func(p *ps) *int32 { return &p.Weapon }),
		f("viewangles[2]", 0, func(p *ps) *float32 { return &p.ViewAngles[2] }),
		i("loopSound", 16, 0, func(p *ps) *int32 { return &p.LoopSound }),
	}
}

// Array encodings: stats, persistant and ammo hold shorts, powerups hold
// expiry times.
const (
	shortArrayBits   = 16
	powerupArrayBits = 32
)

// WriteDeltaPlayerstate encodes to against from. A nil from means the zero
// state. The field delta is followed by one bit telling whether any array
// changed and, if so, a presence bit per array with a 16 bit change mask and
// the changed values.
func (t *Tables) WriteDeltaPlayerstate(m *bitstream.Message, from, to *PlayerState) {
	var zero PlayerState
	if from == nil {
		from = &zero
	}
	bitstream.WriteDeltaFields(m, t.Player, from, to)

	statsMask := arrayMask(from.Stats[:], to.Stats[:])
	persMask := arrayMask(from.Persistant[:], to.Persistant[:])
	ammoMask := arrayMask(from.Ammo[:], to.Ammo[:])
	powerupMask := arrayMask(from.Powerups[:], to.Powerups[:])

	if statsMask|persMask|ammoMask|powerupMask == 0 {
		m.WriteBits(0, 1)
		return
	}
	m.WriteBits(1, 1)
	writeArray(m, statsMask, to.Stats[:], shortArrayBits)
	writeArray(m, persMask, to.Persistant[:], shortArrayBits)
	writeArray(m, ammoMask, to.Ammo[:], shortArrayBits)
	writeArray(m, powerupMask, to.Powerups[:], powerupArrayBits)
}

// ReadDeltaPlayerstate mirrors WriteDeltaPlayerstate.
func (t *Tables) ReadDeltaPlayerstate(m *bitstream.Message, from *PlayerState) PlayerState {
	var zero PlayerState
	if from == nil {
		from = &zero
	}
	var to PlayerState
	bitstream.ReadDeltaFields(m, t.Player, from, &to)

	if m.ReadBits(1) == 0 {
		return to
	}
	readArray(m, to.Stats[:], shortArrayBits)
	readArray(m, to.Persistant[:], shortArrayBits)
	readArray(m, to.Ammo[:], shortArrayBits)
	readArray(m, to.Powerups[:], powerupArrayBits)
	return to
}

func arrayMask(from, to []int32) uint32 {
	var mask uint32
	for i := range to {
		if from[i] != to[i] {
			mask |= 1 << i
		}
	}
	return mask
}

func writeArray(m *bitstream.Message, mask uint32, values []int32, bits int) {
	if mask == 0 {
		m.WriteBits(0, 1)
		return
	}
	m.WriteBits(1, 1)
	m.WriteBits(mask, len(values))
	for i, v := range values {
		if mask&(1<<i) != 0 {
			m.WriteSignedBits(v, bits)
		}
	}
}

// readArray overwrites the entries named by the mask; to already holds the
// reference values.
func readArray(m *bitstream.Message, to []int32, bits int) {
	if m.ReadBits(1) == 0 {
		return
	}
	mask := m.ReadBits(len(to))
	for i := range to {
		if mask&(1<<i) != 0 {
			to[i] = m.ReadSignedBits(bits)
		}
	}
}
