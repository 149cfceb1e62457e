package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/telemetry"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

func TestStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.activate()

	st := h.srv.Status()
	if st.Hostname != "wolfnet" || st.ServerID != h.srv.ServerID() {
		t.Errorf("status = %+v", st)
	}
	if len(st.Clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(st.Clients))
	}
	cs := st.Clients[0]
	if cs.Name != "tester" || cs.State != "active" || cs.Address != "loopback" {
		t.Errorf("client status = %+v", cs)
	}
	if cs.PacketsSent == 0 {
		t.Error("PacketsSent = 0")
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheus(telemetry.WithRegistry(reg))
	ws := transport.NewWebSocketServer(transport.WebSocketOptions{Logger: discardLogger()})
	defer ws.Close()

	h := newHarness(t, nil, WithMetrics(metrics), WithGatherer(reg), WithWebSocket(ws))
	h.activate()

	srv := httptest.NewServer(h.srv.HTTPHandler())
	defer srv.Close()

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status code = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var st StatusSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
		if st.Hostname != "wolfnet" || len(st.Clients) != 1 {
			t.Errorf("status = %+v", st)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "wolfnet_snapshots_sent_total") {
			t.Errorf("metrics body missing snapshot counter:\n%s", body)
		}
	})

	t.Run("websocket_requires_upgrade", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ws")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status code = %d, want 400", resp.StatusCode)
		}
	})
}

func TestHTTPHandler_OptionalRoutes(t *testing.T) {
	h := newHarness(t, nil)
	handler := h.srv.HTTPHandler()

	for _, path := range []string{"/metrics", "/ws"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}
