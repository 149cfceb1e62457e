package transport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
)

// Mux serves several transports as one, routing sends by address kind. A
// server listening on UDP and WebSocket at once uses a Mux.
type Mux struct {
	mu     sync.Mutex
	routes map[netchan.AddrKind]netchan.Transport
	all    []netchan.Transport
	next   int
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{routes: make(map[netchan.AddrKind]netchan.Transport)}
}

// Route sends packets for kind through t. A transport may serve several
// kinds.
func (m *Mux) Route(kind netchan.AddrKind, t netchan.Transport) *Mux {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[kind] = t
	for _, have := range m.all {
		if have == t {
			return m
		}
	}
	m.all = append(m.all, t)
	return m
}

// SendPacket hands data to the transport routed for to.Kind.
func (m *Mux) SendPacket(to netchan.Address, data []byte) error {
	m.mu.Lock()
	t, ok := m.routes[to.Kind]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAddress, to.Kind)
	}
	return t.SendPacket(to, data)
}

// ReceivePacket polls the transports in turn so none starves the others.
func (m *Mux) ReceivePacket() (netchan.Address, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < len(m.all); i++ {
		t := m.all[(m.next+i)%len(m.all)]
		if from, data, ok := t.ReceivePacket(); ok {
			m.next = (m.next + i + 1) % len(m.all)
			return from, data, true
		}
	}
	return netchan.Address{}, nil, false
}

// Close closes every transport.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, t := range m.all {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush releases due packets of every transport that queues them, such as
// Delayed.
func (m *Mux) Flush(now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	var errs []error
	for _, t := range m.all {
		f, ok := t.(interface {
			Flush(time.Time) (int, error)
		})
		if !ok {
			continue
		}
		n, err := f.Flush(now)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}
