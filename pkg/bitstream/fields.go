package bitstream

import (
	"fmt"
	"math"
	"sort"
)

// Float fields that hold small integral values are sent in floatIntBits
// bits instead of 32.
const (
	floatIntBits = 13
	floatIntBias = 1 << (floatIntBits - 1)
)

// MaxTableFields is the largest field table the count byte can address.
const MaxTableFields = 255

// Field describes one member of a record of type T.
//
// Bits is the wire width for integer fields and zero for float32 fields.
// Get returns the raw 32 bit representation (Float32bits for floats) and
// Set stores one back.
type Field[T any] struct {
	Name     string
	Bits     int
	Signed   bool
	Priority int
	Get      func(*T) uint32
	Set      func(*T, uint32)
}

// IsFloat reports whether the field carries a float32.
func (f Field[T]) IsFloat() bool {
	return f.Bits == 0
}

// IntField describes an integer member reached through ptr.
func IntField[T any](name string, bits int, priority int, ptr func(*T) *int32) Field[T] {
	return Field[T]{
		Name:     name,
		Bits:     bits,
		Priority: priority,
		Get:      func(r *T) uint32 { return uint32(*ptr(r)) },
		Set:      func(r *T, v uint32) { *ptr(r) = int32(v) },
	}
}

// SignedField is IntField for members that may be negative.
func SignedField[T any](name string, bits int, priority int, ptr func(*T) *int32) Field[T] {
	f := IntField(name, bits, priority, ptr)
	f.Signed = true
	return f
}

// FloatField describes a float32 member reached through ptr.
func FloatField[T any](name string, priority int, ptr func(*T) *float32) Field[T] {
	return Field[T]{
		Name:     name,
		Priority: priority,
		Get:      func(r *T) uint32 { return math.Float32bits(*ptr(r)) },
		Set:      func(r *T, v uint32) { *ptr(r) = math.Float32frombits(v) },
	}
}

// FieldTable is an ordered list of fields. Fields that change most often
// belong first: the encoder stops after the last changed field, so a good
// order keeps deltas short.
type FieldTable[T any] struct {
	fields []Field[T]
}

// NewFieldTable orders fields by descending Priority, keeping declaration
// order among equal priorities. It panics on a malformed table, which is a
// programming error.
func NewFieldTable[T any](fields ...Field[T]) FieldTable[T] {
	if len(fields) > MaxTableFields {
		panic(fmt.Sprintf("bitstream: %d fields exceeds table limit", len(fields)))
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Bits < 0 || f.Bits > 32 {
			panic(fmt.Sprintf("bitstream: field %q has invalid width %d", f.Name, f.Bits))
		}
		if f.Get == nil || f.Set == nil {
			panic(fmt.Sprintf("bitstream: field %q has no accessors", f.Name))
		}
		if seen[f.Name] {
			panic(fmt.Sprintf("bitstream: duplicate field %q", f.Name))
		}
		seen[f.Name] = true
	}

	sorted := make([]Field[T], len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return FieldTable[T]{fields: sorted}
}

// WithPriorities returns a copy of the table with the named priorities
// replaced and the order recomputed. Unknown names are ignored.
func (t FieldTable[T]) WithPriorities(priorities map[string]int) FieldTable[T] {
	fields := make([]Field[T], len(t.fields))
	copy(fields, t.fields)
	for i := range fields {
		if p, ok := priorities[fields[i].Name]; ok {
			fields[i].Priority = p
		}
	}
	return NewFieldTable(fields...)
}

// Len returns the number of fields.
func (t FieldTable[T]) Len() int {
	return len(t.fields)
}

// Field returns the i-th field in wire order.
func (t FieldTable[T]) Field(i int) Field[T] {
	return t.fields[i]
}

// Names returns the field names in wire order.
func (t FieldTable[T]) Names() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

// Index returns the wire position of the named field, or -1.
func (t FieldTable[T]) Index(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// lastChanged returns one past the index of the last differing field.
func (t FieldTable[T]) lastChanged(from, to *T) int {
	n := 0
	for i, f := range t.fields {
		if f.Get(from) != f.Get(to) {
			n = i + 1
		}
	}
	return n
}

// Changed reports whether any field differs between from and to.
func (t FieldTable[T]) Changed(from, to *T) bool {
	return t.lastChanged(from, to) > 0
}

// WriteDeltaFields encodes to against from.
//
// Layout: one bit that is 0 when nothing changed, in which case nothing else
// follows. Otherwise an 8 bit count of fields covered, then for each
// covered field a changed bit and, when set, the field value.
//
// It returns whether any field changed.
func WriteDeltaFields[T any](m *Message, t FieldTable[T], from, to *T) bool {
	lc := t.lastChanged(from, to)
	if lc == 0 {
		m.WriteBits(0, 1)
		return false
	}

	m.WriteBits(1, 1)
	m.WriteBits(uint32(lc), 8)
	for i := 0; i < lc; i++ {
		f := t.fields[i]
		v := f.Get(to)
		if f.Get(from) == v {
			m.WriteBits(0, 1)
			continue
		}
		m.WriteBits(1, 1)
		if f.IsFloat() {
			writeFloatValue(m, v)
		} else {
			writeIntValue(m, f, v)
		}
	}
	return true
}

// ReadDeltaFields decodes into to a record written by WriteDeltaFields.
// Fields not covered by the delta are copied from from.
func ReadDeltaFields[T any](m *Message, t FieldTable[T], from, to *T) {
	*to = *from
	if m.ReadBits(1) == 0 {
		return
	}

	lc := int(m.ReadBits(8))
	if lc > len(t.fields) {
		m.Fail(ErrFieldCount)
		return
	}
	for i := 0; i < lc; i++ {
		f := t.fields[i]
		if m.ReadBits(1) == 0 {
			continue
		}
		if f.IsFloat() {
			f.Set(to, readFloatValue(m))
		} else {
			f.Set(to, readIntValue(m, f))
		}
	}
}

func writeFloatValue(m *Message, v uint32) {
	if v == 0 {
		m.WriteBits(0, 1)
		return
	}
	m.WriteBits(1, 1)

	f := math.Float32frombits(v)
	if f >= -floatIntBias && f < floatIntBias {
		trunc := int32(f)
		if math.Float32bits(float32(trunc)) == v {
			m.WriteBits(0, 1)
			m.WriteBits(uint32(trunc+floatIntBias), floatIntBits)
			return
		}
	}
	m.WriteBits(1, 1)
	m.WriteBits(v, 32)
}

func readFloatValue(m *Message) uint32 {
	if m.ReadBits(1) == 0 {
		return 0
	}
	if m.ReadBits(1) == 0 {
		trunc := int32(m.ReadBits(floatIntBits)) - floatIntBias
		return math.Float32bits(float32(trunc))
	}
	return m.ReadBits(32)
}

func writeIntValue[T any](m *Message, f Field[T], v uint32) {
	if v == 0 {
		m.WriteBits(0, 1)
		return
	}
	m.WriteBits(1, 1)
	m.WriteBits(v, f.Bits)
}

func readIntValue[T any](m *Message, f Field[T]) uint32 {
	if m.ReadBits(1) == 0 {
		return 0
	}
	if f.Signed {
		return uint32(m.ReadSignedBits(f.Bits))
	}
	return m.ReadBits(f.Bits)
}
