package server

import (
	"net/netip"
	"testing"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

type countingMetrics struct {
	NopMetrics
	rateDelayed int
	truncated   int
	snapshots   int
	deltas      int
	dropped     []string
}

func (m *countingMetrics) SnapshotRateDelayed()    { m.rateDelayed++ }
func (m *countingMetrics) EntitiesTruncated(n int) { m.truncated += n }
func (m *countingMetrics) ClientDropped(r string)  { m.dropped = append(m.dropped, r) }
func (m *countingMetrics) SnapshotSent(_, _ int, delta bool) {
	m.snapshots++
	if delta {
		m.deltas++
	}
}

func TestVisibleEntities(t *testing.T) {
	world := newTestWorld(8)
	set := func(num int, flags EntityFlags, single int) {
		e := world.entities[num]
		e.Flags = flags
		e.SingleClient = single
		world.entities[num] = e
	}
	set(1, FlagNoClient, 0)
	set(2, FlagSingleClient, 0)
	set(3, FlagSingleClient, 1)
	set(4, FlagNotSingleClient, 0)
	set(5, FlagBroadcast, 0)
	set(7, FlagPortal, 0)
	world.hidden[5] = true
	world.hidden[6] = true
	world.hidden[7] = true

	s, err := New(nil, world, nil, WithLogger(discardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	ps := world.PlayerState(0)
	ents, truncated := s.visibleEntities(s.Client(0), &ps)
	if got := entityNumbers(ents); got != "0,2,5,7" {
		t.Errorf("visible = %s, want 0,2,5,7", got)
	}
	if truncated != 0 {
		t.Errorf("truncated = %d, want 0", truncated)
	}
}

func TestVisibleEntities_Truncated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSnapshotEntities = 3
	metrics := &countingMetrics{}
	h := newHarness(t, cfg, WithMetrics(metrics))
	h.activate()

	if got := entityNumbers(h.snapshot().Entities); got != "0,1,2" {
		t.Errorf("entities = %s, want 0,1,2", got)
	}
	if metrics.truncated == 0 {
		t.Error("truncation not counted")
	}
}

func TestSnapshot_RateDelayed(t *testing.T) {
	metrics := &countingMetrics{}
	h := newHarness(t, nil, WithMetrics(metrics))
	c := h.activate()

	if got := h.srv.clientRate(c); got != 0 {
		t.Fatalf("clientRate(loopback) = %d, want 0", got)
	}
	c.Channel.SetRemote(netchan.IPAddress(netip.MustParseAddrPort("203.0.113.5:27960")))
	c.Rate = 1000
	h.srv.scheduleSnapshot(c, 952)
	if want := h.srv.Time() + 1000; c.NextSnapshotTime != want {
		t.Fatalf("NextSnapshotTime = %d, want %d", c.NextSnapshotTime, want)
	}

	last := h.snapshot().MessageNum
	h.frame()
	if !c.RateDelayed {
		t.Fatal("RateDelayed not set while waiting on the rate")
	}
	if metrics.rateDelayed != 1 {
		t.Errorf("rate delays = %d, want 1", metrics.rateDelayed)
	}
	if h.snapshot().MessageNum != last {
		t.Fatal("snapshot sent before the rate allowed it")
	}

	for range 19 {
		h.frame()
	}
	snap := h.snapshot()
	if snap.MessageNum == last {
		t.Fatal("no snapshot after the rate delay")
	}
	if !snap.Flags.Has(protocol.SnapFlagRateDelayed) {
		t.Error("snapshot missing rate-delayed flag")
	}
	if c.RateDelayed {
		t.Error("RateDelayed not cleared by the snapshot")
	}
}

func TestSnapshot_IntervalNotRateDelayed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSnaps = 5
	h := newHarness(t, cfg)
	c := h.activate()

	// Waiting on the snapshot interval is not a rate delay.
	h.frame()
	if c.RateDelayed {
		t.Error("RateDelayed set by the snapshot interval")
	}
}

func TestSnapshot_Metrics(t *testing.T) {
	metrics := &countingMetrics{}
	h := newHarness(t, nil, WithMetrics(metrics))
	h.activate()
	h.move(false, gamestate.UserCmd{ServerTime: 5})
	h.frame()

	if metrics.snapshots < 2 {
		t.Errorf("snapshots = %d, want at least 2", metrics.snapshots)
	}
	if metrics.deltas != 1 {
		t.Errorf("delta snapshots = %d, want 1", metrics.deltas)
	}
}

func TestSnapshotRing(t *testing.T) {
	r := NewSnapshotRing(4)
	for seq := uint32(1); seq <= 6; seq++ {
		r.Add(&Frame{Sequence: seq})
	}

	if _, ok := r.Get(1); ok {
		t.Error("Get(1) found an overwritten frame")
	}
	for seq := uint32(3); seq <= 6; seq++ {
		f, ok := r.Get(seq)
		if !ok || f.Sequence != seq {
			t.Errorf("Get(%d) = %v, %v", seq, f, ok)
		}
	}
	if r.MinSeq() != 3 || r.MaxSeq() != 6 || r.Count() != 4 {
		t.Errorf("MinSeq, MaxSeq, Count = %d, %d, %d; want 3, 6, 4", r.MinSeq(), r.MaxSeq(), r.Count())
	}

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count() after Clear = %d", r.Count())
	}
	if _, ok := r.Get(6); ok {
		t.Error("Get(6) found a cleared frame")
	}
}

func TestSnapshotRing_DefaultCapacity(t *testing.T) {
	r := NewSnapshotRing(0)
	r.Add(&Frame{Sequence: protocol.PacketBackup + 1})
	if _, ok := r.Get(1); ok {
		t.Error("Get(1) matched a different sequence in the same slot")
	}
	if _, ok := r.Get(protocol.PacketBackup + 1); !ok {
		t.Error("Get() missed the stored frame")
	}
}
