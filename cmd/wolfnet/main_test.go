package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/config"
	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/errors"
	"github.com/TheDushan/OpenWolf-Engine-sub001/internal/simworld"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/client"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/demo"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordDemo plays a short session over loopback and returns the demo
// recorded for the client.
func recordDemo(t *testing.T) []byte {
	t.Helper()
	logger := discard()
	w, err := simworld.New(simworld.Config{MaxClients: 1, Movers: 4}, logger)
	if err != nil {
		t.Fatal(err)
	}
	srvEnd, cliEnd := transport.NewLoopbackPair()
	srv, err := server.New(&server.Config{MaxClients: 1, Hostname: "demo arena"}, w, srvEnd,
		server.WithGame(w), server.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	cl, err := client.New(&client.Config{Name: "recorded"}, cliEnd, client.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if err := cl.Connect(netchan.LoopbackAddress()); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	recording := false
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		w.Advance(50)
		if c := srv.Client(0); !recording && c.State >= server.StatePrimed {
			if err := srv.StartRecording(c, &buf); err != nil {
				t.Fatal(err)
			}
			recording = true
		}
		srv.Frame(ctx, 50)
		if cl.State() == client.StateActive {
			cl.AddUserCmd(gamestate.UserCmd{ServerTime: w.Time(), ForwardMove: 127})
		}
		cl.Frame(50)
	}
	if !recording {
		t.Fatal("client never primed")
	}
	if err := srv.StopRecording(srv.Client(0)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	data := recordDemo(t)

	t.Run("summary", func(t *testing.T) {
		var out bytes.Buffer
		sum, err := inspect(&out, bytes.NewReader(data), false)
		if err != nil {
			t.Fatalf("inspect: %v\n%s", err, out.String())
		}
		if sum.Snapshots == 0 {
			t.Errorf("no snapshots decoded:\n%s", out.String())
		}
		if sum.Messages < sum.Snapshots {
			t.Errorf("messages = %d, snapshots = %d", sum.Messages, sum.Snapshots)
		}
		for _, want := range []string{`server "demo arena"`, "client 0", "full", "delta"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("entities", func(t *testing.T) {
		var out bytes.Buffer
		if _, err := inspect(&out, bytes.NewReader(data), true); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "[") {
			t.Errorf("entity lists missing:\n%s", out.String())
		}
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := inspect(io.Discard, bytes.NewReader(data[:len(data)-20]), false)
		if e := errors.FromError(err, ""); e == nil || e.Code != "W301" {
			t.Errorf("err = %v, want W301", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := inspect(io.Discard, bytes.NewReader(nil), false)
		if e := errors.FromError(err, ""); e == nil || e.Code != "W301" {
			t.Errorf("err = %v, want W301", err)
		}
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"text_info", "info", "text", false},
		{"json_debug", "debug", "json", false},
		{"default_format", "warn", "", false},
		{"bad_level", "loud", "text", true},
		{"bad_format", "info", "xml", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if e := errors.FromError(err, ""); e.Code != "W400" {
					t.Errorf("code = %s, want W400", e.Code)
				}
				return
			}
			if logger == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestLoadServeConfig(t *testing.T) {
	t.Run("defaults_without_file", func(t *testing.T) {
		cfg, err := loadServeConfig(viper.New())
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Listen != config.DefaultListen {
			t.Errorf("listen = %q", cfg.Server.Listen)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "wolfnet.json")
		base := config.New()
		base.Server.Hostname = "from file"
		base.Server.FPS = 10
		if err := base.SaveTo(path); err != nil {
			t.Fatal(err)
		}

		v := viper.New()
		v.Set("config", path)
		v.Set("fps", 30)
		v.Set("max-clients", 4)
		v.Set("latency", "40ms")
		v.Set("loss", 0.25)
		v.Set("websocket", true)
		v.Set("record", 2)
		cfg, err := loadServeConfig(v)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Hostname != "from file" {
			t.Errorf("hostname = %q, want value from file", cfg.Server.Hostname)
		}
		if cfg.Server.FPS != 30 || cfg.Server.MaxClients != 4 {
			t.Errorf("fps = %d, maxClients = %d", cfg.Server.FPS, cfg.Server.MaxClients)
		}
		if cfg.Net.Latency != "40ms" || cfg.Net.Loss != 0.25 {
			t.Errorf("net = %+v", cfg.Net)
		}
		if !cfg.HTTP.WebSocket || cfg.Demo.Record != 2 {
			t.Errorf("websocket = %v, record = %d", cfg.HTTP.WebSocket, cfg.Demo.Record)
		}
	})

	t.Run("missing_explicit_file", func(t *testing.T) {
		v := viper.New()
		v.Set("config", filepath.Join(t.TempDir(), "nope.json"))
		_, err := loadServeConfig(v)
		if e := errors.FromError(err, ""); e == nil || e.Code != "W100" {
			t.Errorf("err = %v, want W100", err)
		}
	})

	t.Run("invalid_override", func(t *testing.T) {
		v := viper.New()
		v.Set("latency", "soon")
		_, err := loadServeConfig(v)
		if e := errors.FromError(err, ""); e == nil || e.Code != "W102" {
			t.Errorf("err = %v, want W102", err)
		}
	})
}

func TestArchiver(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		a, err := newArchiver(config.New(), discard())
		if err != nil || a != nil {
			t.Fatalf("archiver = %v, err = %v", a, err)
		}
	})

	t.Run("saves_to_disk", func(t *testing.T) {
		cfg := config.New()
		cfg.Demo.Dir = t.TempDir()
		a, err := newArchiver(cfg, discard())
		if err != nil {
			t.Fatal(err)
		}
		data := recordDemo(t)
		a.done(0, bytes.NewBuffer(data), 3)
		a.done(0, bytes.NewBuffer(nil), 0)
		a.wait()

		store, err := demo.NewDiskStore(cfg.Demo.Dir, 0)
		if err != nil {
			t.Fatal(err)
		}
		list, err := store.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 {
			t.Fatalf("archived %d demos, want 1", len(list))
		}
		got, err := os.ReadFile(filepath.Join(cfg.Demo.Dir, list[0].Name))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, data) {
			t.Error("archived demo differs")
		}
	})
}

func TestVersionCmd(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		cmd := versionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--json"})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		var bi buildInfo
		if err := json.Unmarshal(out.Bytes(), &bi); err != nil {
			t.Fatalf("unmarshal %q: %v", out.String(), err)
		}
		if bi.Protocol != protocol.Version || bi.Version != version {
			t.Errorf("build info = %+v", bi)
		}
	})

	t.Run("short", func(t *testing.T) {
		cmd := versionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-s"})
		if err := cmd.Execute(); err != nil {
			t.Fatal(err)
		}
		if got := strings.TrimSpace(out.String()); got != version {
			t.Errorf("short = %q, want %q", got, version)
		}
	})
}
