package gamestate

import (
	"sync"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
)

// Tables holds the field tables both ends of a connection encode records
// with. The two ends must agree on the tables, priorities included.
type Tables struct {
	Entity  bitstream.FieldTable[EntityState]
	Player  bitstream.FieldTable[PlayerState]
	Usercmd bitstream.FieldTable[UserCmd]
}

// Priorities overrides field priorities by name. Higher values are sent
// first. The numbers only matter relative to each other.
type Priorities struct {
	Entity map[string]int `json:"entity,omitempty"`
	Player map[string]int `json:"player,omitempty"`
}

var (
	defaultTablesOnce sync.Once
	defaultTables     *Tables
)

// DefaultTables returns the shared tables with the built-in ordering.
func DefaultTables() *Tables {
	defaultTablesOnce.Do(func() {
		defaultTables = &Tables{
			Entity:  bitstream.NewFieldTable(prioritize(entityFieldList())...),
			Player:  bitstream.NewFieldTable(prioritize(playerFieldList())...),
			Usercmd: bitstream.NewFieldTable(prioritize(usercmdFieldList())...),
		}
	})
	return defaultTables
}

// NewTables returns the default tables with p applied. An empty p returns
// DefaultTables.
func NewTables(p Priorities) *Tables {
	d := DefaultTables()
	if len(p.Entity) == 0 && len(p.Player) == 0 {
		return d
	}
	return &Tables{
		Entity:  d.Entity.WithPriorities(p.Entity),
		Player:  d.Player.WithPriorities(p.Player),
		Usercmd: d.Usercmd,
	}
}

// prioritize gives each field a priority that reproduces its list order.
func prioritize[T any](fields []bitstream.Field[T]) []bitstream.Field[T] {
	for i := range fields {
		fields[i].Priority = (len(fields) - i) * 10
	}
	return fields
}

// WriteDeltaEntity encodes with DefaultTables.
func WriteDeltaEntity(m *bitstream.Message, from, to *EntityState, force bool) {
	DefaultTables().WriteDeltaEntity(m, from, to, force)
}

// ReadDeltaEntity decodes with DefaultTables.
func ReadDeltaEntity(m *bitstream.Message, from *EntityState, number int) (EntityState, bool) {
	return DefaultTables().ReadDeltaEntity(m, from, number)
}

// WriteDeltaPlayerstate encodes with DefaultTables.
func WriteDeltaPlayerstate(m *bitstream.Message, from, to *PlayerState) {
	DefaultTables().WriteDeltaPlayerstate(m, from, to)
}

// ReadDeltaPlayerstate decodes with DefaultTables.
func ReadDeltaPlayerstate(m *bitstream.Message, from *PlayerState) PlayerState {
	return DefaultTables().ReadDeltaPlayerstate(m, from)
}
