package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// ErrUnsupportedAddress is returned when a transport cannot reach an
// address kind.
var ErrUnsupportedAddress = errors.New("transport: unsupported address kind")

// UDPQueue is the number of received datagrams buffered between the reader
// goroutine and ReceivePacket. Datagrams beyond it are dropped.
const UDPQueue = 512

type datagram struct {
	from netchan.Address
	data []byte
}

// UDP is a datagram transport over a single UDP socket.
type UDP struct {
	conn    *net.UDPConn
	packets chan datagram
	logger  *slog.Logger

	overruns  atomic.Uint64
	closeOnce sync.Once
	done      chan struct{}
}

// ListenUDP opens a UDP socket on addr (for example ":27960") and starts
// reading from it.
func ListenUDP(addr string, logger *slog.Logger) (*UDP, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", addr, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	u := &UDP{
		conn:    conn,
		packets: make(chan datagram, UDPQueue),
		logger:  logger.With("component", "udp", "addr", conn.LocalAddr().String()),
		done:    make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

// LocalAddr returns the bound socket address.
func (u *UDP) LocalAddr() netip.AddrPort {
	ap := u.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

func (u *UDP) readLoop() {
	buf := make([]byte, protocol.MaxPacketLen*2)
	for {
		n, from, err := u.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-u.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			u.logger.Warn("read error", "error", err)
			continue
		}
		if n > protocol.MaxPacketLen {
			u.logger.Debug("oversize datagram", "from", from.String(), "size", n)
			continue
		}
		d := datagram{
			from: netchan.IPAddress(netip.AddrPortFrom(from.Addr().Unmap(), from.Port())),
			data: append([]byte(nil), buf[:n]...),
		}
		select {
		case u.packets <- d:
		default:
			u.overruns.Add(1)
		}
	}
}

// SendPacket writes one datagram to an IP address.
func (u *UDP) SendPacket(to netchan.Address, data []byte) error {
	if to.Kind != netchan.AddrIP {
		return fmt.Errorf("%w: %s", ErrUnsupportedAddress, to.Kind)
	}
	if _, err := u.conn.WriteToUDPAddrPort(data, to.AddrPort); err != nil {
		return fmt.Errorf("transport: udp send: %w", err)
	}
	return nil
}

// ReceivePacket returns the next buffered datagram without blocking.
func (u *UDP) ReceivePacket() (netchan.Address, []byte, bool) {
	select {
	case d := <-u.packets:
		return d.from, d.data, true
	default:
		return netchan.Address{}, nil, false
	}
}

// Overruns returns how many datagrams were dropped because the receive
// queue was full.
func (u *UDP) Overruns() uint64 {
	return u.overruns.Load()
}

// Close closes the socket and stops the reader.
func (u *UDP) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.done)
		err = u.conn.Close()
	})
	return err
}
