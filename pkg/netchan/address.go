package netchan

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrBadAddress is returned by ParseAddress for unparsable input.
var ErrBadAddress = errors.New("netchan: invalid address")

// AddrKind classifies an Address.
type AddrKind uint8

const (
	AddrBot       AddrKind = iota // server-side fake client, never sent to
	AddrLoopback                  // in-process peer
	AddrIP                        // UDP peer
	AddrWebSocket                 // browser peer behind a WebSocket
)

// String returns the string representation of the kind.
func (k AddrKind) String() string {
	switch k {
	case AddrBot:
		return "bot"
	case AddrLoopback:
		return "loopback"
	case AddrIP:
		return "ip"
	case AddrWebSocket:
		return "ws"
	default:
		return "unknown"
	}
}

// Address identifies a remote peer. ID distinguishes WebSocket peers that
// share a remote address.
type Address struct {
	Kind     AddrKind
	AddrPort netip.AddrPort
	ID       string
}

// LoopbackAddress returns the address of the in-process peer.
func LoopbackAddress() Address {
	return Address{Kind: AddrLoopback}
}

// BotAddress returns the address used for server-side fake clients.
func BotAddress() Address {
	return Address{Kind: AddrBot}
}

// IPAddress returns the address of a UDP peer.
func IPAddress(ap netip.AddrPort) Address {
	return Address{Kind: AddrIP, AddrPort: ap}
}

// WebSocketAddress returns the address of a WebSocket peer.
func WebSocketAddress(id string, remote netip.AddrPort) Address {
	return Address{Kind: AddrWebSocket, AddrPort: remote, ID: id}
}

// ParseAddress parses "loopback", "bot" or a host:port pair.
func ParseAddress(s string) (Address, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "loopback", "localhost:loopback":
		return LoopbackAddress(), nil
	case "bot":
		return BotAddress(), nil
	}
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrBadAddress, s, err)
	}
	return IPAddress(ap), nil
}

// Equal reports whether a and b name the same peer.
func (a Address) Equal(b Address) bool {
	return a.Kind == b.Kind && a.AddrPort == b.AddrPort && a.ID == b.ID
}

// EqualBase compares addresses ignoring the port. NATs may change a
// client's source port mid-session; the qport tells such clients apart.
func (a Address) EqualBase(b Address) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AddrIP:
		return a.AddrPort.Addr() == b.AddrPort.Addr()
	case AddrWebSocket:
		return a.ID == b.ID
	default:
		return true
	}
}

// IsLAN reports whether the peer is local enough to skip rate limiting.
func (a Address) IsLAN() bool {
	switch a.Kind {
	case AddrLoopback, AddrBot:
		return true
	case AddrIP, AddrWebSocket:
		ip := a.AddrPort.Addr()
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
	default:
		return false
	}
}

// String returns a printable form of the address.
func (a Address) String() string {
	switch a.Kind {
	case AddrBot:
		return "bot"
	case AddrLoopback:
		return "loopback"
	case AddrWebSocket:
		return "ws:" + a.ID + "@" + a.AddrPort.String()
	default:
		return a.AddrPort.String()
	}
}
