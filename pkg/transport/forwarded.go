package transport

import (
	"net/http"
	"net/netip"
	"strings"
)

// peerAddr returns the address of the client behind r. Forwarded and
// X-Forwarded-For are honored only when the direct peer is a trusted
// proxy; the nearest untrusted hop wins. The port is always the direct
// peer's.
func peerAddr(r *http.Request, trusted []netip.Prefix) netip.AddrPort {
	remote, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return netip.AddrPort{}
	}
	if !isTrusted(remote.Addr(), trusted) {
		return remote
	}

	hops := parseForwardedFor(r.Header.Get("Forwarded"))
	if len(hops) == 0 {
		hops = parseXForwardedFor(r.Header.Get("X-Forwarded-For"))
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !isTrusted(hops[i], trusted) {
			return netip.AddrPortFrom(hops[i], remote.Port())
		}
	}
	if len(hops) > 0 {
		return netip.AddrPortFrom(hops[0], remote.Port())
	}
	return remote
}

func isTrusted(ip netip.Addr, trusted []netip.Prefix) bool {
	ip = ip.Unmap()
	for _, p := range trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func parseForwardedFor(header string) []netip.Addr {
	if header == "" {
		return nil
	}
	var out []netip.Addr
	for _, part := range strings.Split(header, ",") {
		for _, param := range strings.Split(part, ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "for") {
				continue
			}
			if ip, ok := parseForwardedIP(v); ok {
				out = append(out, ip)
			}
		}
	}
	return out
}

func parseXForwardedFor(header string) []netip.Addr {
	if header == "" {
		return nil
	}
	var out []netip.Addr
	for _, part := range strings.Split(header, ",") {
		if ip, ok := parseForwardedIP(part); ok {
			out = append(out, ip)
		}
	}
	return out
}

func parseForwardedIP(value string) (netip.Addr, bool) {
	value = strings.Trim(strings.TrimSpace(value), `"`)
	if value == "" || strings.EqualFold(value, "unknown") {
		return netip.Addr{}, false
	}
	if ap, err := netip.ParseAddrPort(value); err == nil {
		return ap.Addr().Unmap(), true
	}
	host := strings.Trim(value, "[]")
	if zone := strings.IndexByte(host, '%'); zone != -1 {
		host = host[:zone]
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}
