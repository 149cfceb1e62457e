package huffman

import (
	"container/heap"
	"errors"
)

// ErrEmptyTable is returned when every frequency in a table is zero.
var ErrEmptyTable = errors.New("huffman: frequency table is empty")

// BitWriter is the sink a Codec encodes into.
type BitWriter interface {
	WriteBits(value uint32, bits int)
}

// BitReader is the source a Codec decodes from.
type BitReader interface {
	ReadBits(bits int) uint32
}

// Codec is a static Huffman code over the full byte alphabet.
//
// Both peers must build their Codec from the same frequency table. A Codec
// is immutable after construction and safe for concurrent use.
type Codec struct {
	nodes []node
	root  int
	codes [256][]uint8
}

type node struct {
	left, right int // child indices, -1 for leaves
	sym         byte
}

func (n node) leaf() bool { return n.left < 0 }

// New builds a Codec from a symbol frequency table. Symbols with a zero
// frequency are given a frequency of one so every byte stays encodable.
func New(freqs [256]uint32) (*Codec, error) {
	var total uint64
	for _, f := range freqs {
		total += uint64(f)
	}
	if total == 0 {
		return nil, ErrEmptyTable
	}

	c := &Codec{nodes: make([]node, 0, 511)}
	q := &buildQueue{}
	for sym := 0; sym < 256; sym++ {
		f := uint64(freqs[sym])
		if f == 0 {
			f = 1
		}
		c.nodes = append(c.nodes, node{left: -1, right: -1, sym: byte(sym)})
		q.items = append(q.items, weighted{weight: f, index: sym})
	}
	heap.Init(q)

	for q.Len() > 1 {
		a := heap.Pop(q).(weighted)
		b := heap.Pop(q).(weighted)
		c.nodes = append(c.nodes, node{left: a.index, right: b.index})
		heap.Push(q, weighted{weight: a.weight + b.weight, index: len(c.nodes) - 1})
	}
	c.root = heap.Pop(q).(weighted).index
	c.assign(c.root, nil)
	return c, nil
}

func (c *Codec) assign(idx int, path []uint8) {
	n := c.nodes[idx]
	if n.leaf() {
		code := make([]uint8, len(path))
		copy(code, path)
		c.codes[n.sym] = code
		return
	}
	c.assign(n.left, append(path, 0))
	c.assign(n.right, append(path, 1))
}

// EncodeSymbol writes the code for sym, root to leaf, one bit at a time.
func (c *Codec) EncodeSymbol(w BitWriter, sym byte) {
	for _, bit := range c.codes[sym] {
		w.WriteBits(uint32(bit), 1)
	}
}

// DecodeSymbol reads one symbol. A reader that runs dry yields zero bits,
// so decoding always terminates within the depth of the tree.
func (c *Codec) DecodeSymbol(r BitReader) byte {
	idx := c.root
	for !c.nodes[idx].leaf() {
		if r.ReadBits(1) == 0 {
			idx = c.nodes[idx].left
		} else {
			idx = c.nodes[idx].right
		}
	}
	return c.nodes[idx].sym
}

// CodeLength returns the number of bits used to encode sym.
func (c *Codec) CodeLength(sym byte) int {
	return len(c.codes[sym])
}

// weighted is a subtree waiting to be merged. Ties on weight are broken by
// node index so every peer builds an identical tree.
type weighted struct {
	weight uint64
	index  int
}

type buildQueue struct {
	items []weighted
}

func (q *buildQueue) Len() int { return len(q.items) }

func (q *buildQueue) Less(i, j int) bool {
	if q.items[i].weight != q.items[j].weight {
		return q.items[i].weight < q.items[j].weight
	}
	return q.items[i].index < q.items[j].index
}

func (q *buildQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *buildQueue) Push(x any) { q.items = append(q.items, x.(weighted)) }

func (q *buildQueue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}
