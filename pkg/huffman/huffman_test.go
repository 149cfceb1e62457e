package huffman

import (
	"errors"
	"testing"
)

// bitBuffer is a minimal BitWriter/BitReader over a bool slice.
type bitBuffer struct {
	bits []uint32
	pos  int
}

func (b *bitBuffer) WriteBits(value uint32, bits int) {
	for i := 0; i < bits; i++ {
		b.bits = append(b.bits, (value>>i)&1)
	}
}

func (b *bitBuffer) ReadBits(bits int) uint32 {
	var v uint32
	for i := 0; i < bits; i++ {
		if b.pos < len(b.bits) {
			v |= b.bits[b.pos] << i
		}
		b.pos++
	}
	return v
}

func TestCodec_RoundTripAllSymbols(t *testing.T) {
	c := Default()
	buf := &bitBuffer{}
	for sym := 0; sym < 256; sym++ {
		c.EncodeSymbol(buf, byte(sym))
	}
	for sym := 0; sym < 256; sym++ {
		if got := c.DecodeSymbol(buf); got != byte(sym) {
			t.Fatalf("symbol %d decoded as %d", sym, got)
		}
	}
}

func TestCodec_CommonTextIsShorter(t *testing.T) {
	c := Default()
	text := "say hello there"
	bits := 0
	for i := 0; i < len(text); i++ {
		bits += c.CodeLength(text[i])
	}
	if bits >= len(text)*8 {
		t.Errorf("expected compression, got %d bits for %d bytes", bits, len(text))
	}
	if c.CodeLength('e') >= c.CodeLength(0xff) {
		t.Errorf("'e' (%d bits) should be shorter than 0xff (%d bits)", c.CodeLength('e'), c.CodeLength(0xff))
	}
}

func TestNew(t *testing.T) {
	t.Run("empty_table", func(t *testing.T) {
		var freqs [256]uint32
		if _, err := New(freqs); !errors.Is(err, ErrEmptyTable) {
			t.Errorf("expected ErrEmptyTable, got %v", err)
		}
	})

	t.Run("sparse_table_keeps_every_symbol", func(t *testing.T) {
		var freqs [256]uint32
		freqs['a'] = 10
		c, err := New(freqs)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		buf := &bitBuffer{}
		c.EncodeSymbol(buf, 'z')
		c.EncodeSymbol(buf, 'a')
		if got := c.DecodeSymbol(buf); got != 'z' {
			t.Errorf("got %q, want 'z'", got)
		}
		if got := c.DecodeSymbol(buf); got != 'a' {
			t.Errorf("got %q, want 'a'", got)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := New(DefaultFrequencies())
		b, _ := New(DefaultFrequencies())
		for sym := 0; sym < 256; sym++ {
			ca, cb := a.codes[sym], b.codes[sym]
			if len(ca) != len(cb) {
				t.Fatalf("symbol %d: code lengths differ", sym)
			}
			for i := range ca {
				if ca[i] != cb[i] {
					t.Fatalf("symbol %d: codes differ", sym)
				}
			}
		}
	})
}

func TestCodec_DrainedReaderTerminates(t *testing.T) {
	c := Default()
	buf := &bitBuffer{}
	// No bits at all: decoding must still return a symbol.
	_ = c.DecodeSymbol(buf)
}
