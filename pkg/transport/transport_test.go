package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
)

// poll waits for a packet on t.
func poll(t *testing.T, tr netchan.Transport) (netchan.Address, []byte) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if from, data, ok := tr.ReceivePacket(); ok {
			return from, data
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no packet received")
	return netchan.Address{}, nil
}

func TestLoopback(t *testing.T) {
	a, b := NewLoopbackPair()

	if _, _, ok := b.ReceivePacket(); ok {
		t.Fatal("empty loopback returned a packet")
	}

	buf := []byte("hello")
	a.SendPacket(netchan.LoopbackAddress(), buf)
	buf[0] = 'J'
	from, data, ok := b.ReceivePacket()
	if !ok || string(data) != "hello" || from.Kind != netchan.AddrLoopback {
		t.Fatalf("got %q %v %v", data, from, ok)
	}
	if _, _, ok := a.ReceivePacket(); ok {
		t.Error("packet echoed back to sender")
	}

	t.Run("overflow_keeps_newest", func(t *testing.T) {
		for i := 0; i < LoopbackQueue+4; i++ {
			a.SendPacket(netchan.Address{}, []byte{byte(i)})
		}
		var got []byte
		for {
			_, d, ok := b.ReceivePacket()
			if !ok {
				break
			}
			got = append(got, d[0])
		}
		if len(got) != LoopbackQueue || got[0] != 4 || got[len(got)-1] != LoopbackQueue+3 {
			t.Errorf("got %v", got)
		}
	})

	t.Run("closed", func(t *testing.T) {
		a.Close()
		if err := a.SendPacket(netchan.Address{}, []byte("x")); !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	})
}

func TestLoopback_CarriesChannel(t *testing.T) {
	ca, sa := NewLoopbackPair()
	client := netchan.New(nil, netchan.ClientSide, ca, netchan.LoopbackAddress(), 7)
	server := netchan.New(nil, netchan.ServerSide, sa, netchan.LoopbackAddress(), 7)

	msg := bytes.Repeat([]byte("snapshot"), 500)
	if err := client.Transmit(msg); err != nil {
		t.Fatal(err)
	}
	var got []byte
	for {
		_, p, ok := sa.ReceivePacket()
		if !ok {
			break
		}
		if out, res := server.Process(p); res == netchan.Delivered {
			got = out
		}
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("delivered %d bytes, want %d", len(got), len(msg))
	}
}

func TestUDP(t *testing.T) {
	a, err := ListenUDP("127.0.0.1:0", nil)
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer a.Close()
	b, err := ListenUDP("127.0.0.1:0", nil)
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer b.Close()

	if err := a.SendPacket(netchan.IPAddress(b.LocalAddr()), []byte("ping")); err != nil {
		t.Fatal(err)
	}
	from, data := poll(t, b)
	if string(data) != "ping" {
		t.Errorf("data = %q", data)
	}
	if from.AddrPort.Port() != a.LocalAddr().Port() {
		t.Errorf("from = %v, want port %d", from, a.LocalAddr().Port())
	}

	if err := a.SendPacket(netchan.LoopbackAddress(), []byte("x")); !errors.Is(err, ErrUnsupportedAddress) {
		t.Errorf("err = %v, want ErrUnsupportedAddress", err)
	}
}

func TestWebSocket(t *testing.T) {
	srv := NewWebSocketServer(WebSocketOptions{})
	hs := httptest.NewServer(srv)
	defer hs.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	cl, err := DialWebSocket(context.Background(), url, WebSocketOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Close()

	if err := cl.SendPacket(netchan.Address{}, []byte("connect")); err != nil {
		t.Fatal(err)
	}
	from, data := poll(t, srv)
	if string(data) != "connect" || from.Kind != netchan.AddrWebSocket {
		t.Fatalf("server got %q from %v", data, from)
	}
	if srv.Peers() != 1 {
		t.Errorf("peers = %d", srv.Peers())
	}

	if err := srv.SendPacket(from, []byte("connectResponse")); err != nil {
		t.Fatal(err)
	}
	if _, data := poll(t, cl); string(data) != "connectResponse" {
		t.Errorf("client got %q", data)
	}

	if err := srv.SendPacket(netchan.WebSocketAddress("nobody", from.AddrPort), nil); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("err = %v, want ErrUnknownPeer", err)
	}
}

func TestDelayed(t *testing.T) {
	a, b := NewLoopbackPair()
	start := time.Unix(1000, 0)
	clock := start

	d := NewDelayed(a, DelayedOptions{Latency: 50 * time.Millisecond, Seed: 1})
	d.now = func() time.Time { return clock }

	d.SendPacket(netchan.LoopbackAddress(), []byte("first"))
	clock = start.Add(10 * time.Millisecond)
	d.SendPacket(netchan.LoopbackAddress(), []byte("second"))

	tests := []struct {
		at   time.Duration
		sent int
	}{
		{49 * time.Millisecond, 0},
		{50 * time.Millisecond, 1},
		{59 * time.Millisecond, 0},
		{60 * time.Millisecond, 1},
		{time.Second, 0},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.at), func(t *testing.T) {
			n, err := d.Flush(start.Add(tc.at))
			if err != nil || n != tc.sent {
				t.Errorf("Flush = %d, %v; want %d", n, err, tc.sent)
			}
		})
	}

	for _, want := range []string{"first", "second"} {
		if _, data, ok := b.ReceivePacket(); !ok || string(data) != want {
			t.Errorf("got %q, want %q", data, want)
		}
	}
}

func TestDelayed_Loss(t *testing.T) {
	a, _ := NewLoopbackPair()
	d := NewDelayed(a, DelayedOptions{Loss: 1, Seed: 1})
	for i := 0; i < 10; i++ {
		d.SendPacket(netchan.Address{}, []byte{1})
	}
	if d.Dropped() != 10 || d.Pending() != 0 {
		t.Errorf("dropped=%d pending=%d", d.Dropped(), d.Pending())
	}
}

func TestMux(t *testing.T) {
	la, lb := NewLoopbackPair()
	wa, wb := NewLoopbackPair()
	m := NewMux().
		Route(netchan.AddrLoopback, la).
		Route(netchan.AddrWebSocket, wa)

	m.SendPacket(netchan.LoopbackAddress(), []byte("l"))
	m.SendPacket(netchan.WebSocketAddress("x", netchan.Address{}.AddrPort), []byte("w"))
	if _, d, _ := lb.ReceivePacket(); string(d) != "l" {
		t.Errorf("loopback got %q", d)
	}
	if _, d, _ := wb.ReceivePacket(); string(d) != "w" {
		t.Errorf("ws route got %q", d)
	}
	if err := m.SendPacket(netchan.BotAddress(), nil); !errors.Is(err, ErrUnsupportedAddress) {
		t.Errorf("err = %v", err)
	}

	lb.SendPacket(netchan.Address{}, []byte("1"))
	lb.SendPacket(netchan.Address{}, []byte("2"))
	wb.SendPacket(netchan.Address{}, []byte("3"))
	var got []string
	for {
		_, d, ok := m.ReceivePacket()
		if !ok {
			break
		}
		got = append(got, string(d))
	}
	if strings.Join(got, "") != "132" {
		t.Errorf("receive order = %v, want round robin", got)
	}
	if err := m.Close(); err != nil {
		t.Error(err)
	}
}

func TestMux_Flush(t *testing.T) {
	a, b := NewLoopbackPair()
	d := NewDelayed(a, DelayedOptions{Latency: 20 * time.Millisecond, Seed: 1})
	m := NewMux().Route(netchan.AddrLoopback, d)

	if err := m.SendPacket(netchan.LoopbackAddress(), []byte("late")); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := b.ReceivePacket(); ok {
		t.Fatal("packet arrived before flush")
	}
	n, err := m.Flush(time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("Flush = %d, %v", n, err)
	}
	if _, data, ok := b.ReceivePacket(); !ok || string(data) != "late" {
		t.Errorf("got %q, %v", data, ok)
	}
}
