package transport

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestPeerAddr(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:   "direct_peer",
			remote: "203.0.113.7:5000",
			want:   "203.0.113.7:5000",
		},
		{
			name:    "untrusted_peer_ignores_headers",
			remote:  "203.0.113.7:5000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:    "203.0.113.7:5000",
		},
		{
			name:    "x_forwarded_for",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.9"},
			want:    "198.51.100.1:5000",
		},
		{
			name:    "forwarded_wins",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"Forwarded": `for="[2001:db8::1]:443";proto=https`, "X-Forwarded-For": "198.51.100.1"},
			want:    "[2001:db8::1]:5000",
		},
		{
			name:    "all_hops_trusted",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.2.2.2"},
			want:    "10.1.1.1:5000",
		},
		{
			name:    "unknown_hops",
			remote:  "10.0.0.2:5000",
			headers: map[string]string{"X-Forwarded-For": "unknown"},
			want:    "10.0.0.2:5000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := peerAddr(r, trusted).String(); got != tt.want {
				t.Errorf("peerAddr() = %s, want %s", got, tt.want)
			}
		})
	}
}
