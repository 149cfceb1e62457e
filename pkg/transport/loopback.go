package transport

import (
	"errors"
	"sync"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
)

// LoopbackQueue is how many packets each loopback direction buffers. When
// a queue is full the oldest packet is overwritten.
const LoopbackQueue = 16

// ErrClosed is returned by transports after Close.
var ErrClosed = errors.New("transport: closed")

type loopbackRing struct {
	mu   sync.Mutex
	msgs [LoopbackQueue][]byte
	get  int
	send int
}

func (r *loopbackRing) push(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs[r.send%LoopbackQueue] = append([]byte(nil), data...)
	r.send++
	if r.send-r.get > LoopbackQueue {
		r.get = r.send - LoopbackQueue
	}
}

func (r *loopbackRing) pop() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.get >= r.send {
		return nil, false
	}
	data := r.msgs[r.get%LoopbackQueue]
	r.msgs[r.get%LoopbackQueue] = nil
	r.get++
	return data, true
}

// Loopback is one end of an in-process connection between a server and a
// local client.
type Loopback struct {
	in     *loopbackRing
	out    *loopbackRing
	mu     sync.Mutex
	closed bool
}

// NewLoopbackPair returns two connected loopback ends. Packets sent on one
// are received on the other.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a, b := &loopbackRing{}, &loopbackRing{}
	return &Loopback{in: a, out: b}, &Loopback{in: b, out: a}
}

// SendPacket queues data for the other end. The destination is ignored.
func (l *Loopback) SendPacket(_ netchan.Address, data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	l.out.push(data)
	return nil
}

// ReceivePacket returns the oldest queued packet from the other end.
func (l *Loopback) ReceivePacket() (netchan.Address, []byte, bool) {
	data, ok := l.in.pop()
	if !ok {
		return netchan.Address{}, nil, false
	}
	return netchan.LoopbackAddress(), data, true
}

// Close stops further sends.
func (l *Loopback) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	return nil
}
