package server

import (
	"sync"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Frame is one snapshot as sent to a client, kept as a delta reference for
// later snapshots.
type Frame struct {
	Sequence    uint32 // channel sequence the snapshot was sent in
	ServerTime  int32
	Flags       protocol.SnapFlags
	PlayerState gamestate.PlayerState
	Entities    []gamestate.EntityState // sorted by Number
	SentTime    int32                   // server time of the send, for ping
	Bytes       int
	acked       bool
}

// SnapshotRing is a thread-safe ring buffer of sent frames indexed by
// sequence. A slot holds the last frame whose sequence maps to it, so a
// lookup for an overwritten sequence misses instead of returning the
// wrong frame.
type SnapshotRing struct {
	mu       sync.RWMutex
	frames   []*Frame
	count    int
	capacity int
	minSeq   uint32
	maxSeq   uint32
}

// NewSnapshotRing creates a ring with the given capacity.
func NewSnapshotRing(capacity int) *SnapshotRing {
	if capacity <= 0 {
		capacity = protocol.PacketBackup
	}
	return &SnapshotRing{
		frames:   make([]*Frame, capacity),
		capacity: capacity,
	}
}

// Add stores f in the slot for f.Sequence.
func (r *SnapshotRing) Add(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := int(f.Sequence % uint32(r.capacity))
	if r.frames[slot] == nil {
		r.count++
	}
	r.frames[slot] = f

	if r.count == 1 || protocol.SequenceGreater(f.Sequence, r.maxSeq) {
		r.maxSeq = f.Sequence
	}
	// Oldest surviving frame
	r.minSeq = r.maxSeq
	for _, fr := range r.frames {
		if fr != nil && protocol.SequenceLess(fr.Sequence, r.minSeq) {
			r.minSeq = fr.Sequence
		}
	}
}

// Get returns the frame sent with seq. It reports false when the frame was
// never stored or has been overwritten.
func (r *SnapshotRing) Get(seq uint32) (*Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f := r.frames[int(seq%uint32(r.capacity))]
	if f == nil || f.Sequence != seq {
		return nil, false
	}
	return f, true
}

// MinSeq returns the oldest stored sequence.
func (r *SnapshotRing) MinSeq() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.minSeq
}

// MaxSeq returns the newest stored sequence.
func (r *SnapshotRing) MaxSeq() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxSeq
}

// Count returns the number of stored frames.
func (r *SnapshotRing) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear removes all frames. Called when a client gets a new gamestate.
func (r *SnapshotRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.frames {
		r.frames[i] = nil
	}
	r.count = 0
	r.minSeq = 0
	r.maxSeq = 0
}
