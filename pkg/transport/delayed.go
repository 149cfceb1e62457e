package transport

import (
	"container/heap"
	"math/rand"
	"sync"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
)

// DelayedOptions configures simulated network conditions.
type DelayedOptions struct {
	// Latency is added to every outgoing packet.
	Latency time.Duration

	// Jitter adds a uniformly random extra delay in [0, Jitter).
	Jitter time.Duration

	// Loss is the probability in [0, 1] that a packet is silently dropped.
	Loss float64

	// Seed seeds the random source. Zero uses the current time.
	Seed int64
}

type delayedPacket struct {
	to      netchan.Address
	data    []byte
	release time.Time
	order   uint64
	index   int
}

// delayQueue is a min-heap ordered by release time, then by send order.
type delayQueue []*delayedPacket

func (q delayQueue) Len() int { return len(q) }

func (q delayQueue) Less(i, j int) bool {
	if q[i].release.Equal(q[j].release) {
		return q[i].order < q[j].order
	}
	return q[i].release.Before(q[j].release)
}

func (q delayQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *delayQueue) Push(x any) {
	p := x.(*delayedPacket)
	p.index = len(*q)
	*q = append(*q, p)
}

func (q *delayQueue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*q = old[:n-1]
	return p
}

// Delayed wraps a transport and holds outgoing packets back to simulate
// latency, jitter and loss. Receiving is passed through unchanged.
//
// Packets only leave when Flush is called, typically once per frame.
type Delayed struct {
	inner netchan.Transport
	opts  DelayedOptions
	now   func() time.Time

	mu      sync.Mutex
	queue   delayQueue
	order   uint64
	rng     *rand.Rand
	dropped uint64
}

// NewDelayed wraps inner.
func NewDelayed(inner netchan.Transport, opts DelayedOptions) *Delayed {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Delayed{
		inner: inner,
		opts:  opts,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// SendPacket queues a copy of data for release after the simulated delay.
func (d *Delayed) SendPacket(to netchan.Address, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.Loss > 0 && d.rng.Float64() < d.opts.Loss {
		d.dropped++
		return nil
	}
	delay := d.opts.Latency
	if d.opts.Jitter > 0 {
		delay += time.Duration(d.rng.Int63n(int64(d.opts.Jitter)))
	}
	d.order++
	heap.Push(&d.queue, &delayedPacket{
		to:      to,
		data:    append([]byte(nil), data...),
		release: d.now().Add(delay),
		order:   d.order,
	})
	return nil
}

// Flush sends every packet due at or before now and returns how many were
// sent. The first send error is returned after all due packets are tried.
func (d *Delayed) Flush(now time.Time) (int, error) {
	d.mu.Lock()
	var due []*delayedPacket
	for d.queue.Len() > 0 && !d.queue[0].release.After(now) {
		due = append(due, heap.Pop(&d.queue).(*delayedPacket))
	}
	d.mu.Unlock()

	var first error
	for _, p := range due {
		if err := d.inner.SendPacket(p.to, p.data); err != nil && first == nil {
			first = err
		}
	}
	return len(due), first
}

// Pending returns the number of queued packets.
func (d *Delayed) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.Len()
}

// Dropped returns how many packets the loss simulation discarded.
func (d *Delayed) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// ReceivePacket reads from the wrapped transport.
func (d *Delayed) ReceivePacket() (netchan.Address, []byte, bool) {
	return d.inner.ReceivePacket()
}

// Close discards queued packets and closes the wrapped transport.
func (d *Delayed) Close() error {
	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
	return d.inner.Close()
}
