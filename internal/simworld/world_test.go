package simworld

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
)

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 4
	}
	w, err := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func join(t *testing.T, w *World, num int, name string) {
	t.Helper()
	var info protocol.Info
	info.Set("name", name)
	if err := w.ClientConnect(num, info); err != nil {
		t.Fatal(err)
	}
	w.ClientBegin(num)
}

func TestNew_TooManyEntities(t *testing.T) {
	if _, err := New(Config{MaxClients: 64, Movers: gamestate.EntityNumWorld}, nil); err == nil {
		t.Error("expected an error")
	}
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected an error without client slots")
	}
}

func TestWorld_Deterministic(t *testing.T) {
	a := newTestWorld(t, Config{Movers: 8, Seed: 7})
	b := newTestWorld(t, Config{Movers: 8, Seed: 7})
	c := newTestWorld(t, Config{Movers: 8, Seed: 8})
	a.Advance(500)
	b.Advance(500)
	c.Advance(500)

	num := 4 // first mover
	ea, _ := a.Entity(num)
	eb, _ := b.Entity(num)
	ec, _ := c.Entity(num)
	if ea.State.Origin != eb.State.Origin {
		t.Errorf("same seed, different origins: %v %v", ea.State.Origin, eb.State.Origin)
	}
	if ea.State.Origin == ec.State.Origin {
		t.Error("different seeds gave the same layout")
	}
}

func TestWorld_MoversMove(t *testing.T) {
	w := newTestWorld(t, Config{Movers: 1})
	before, _ := w.Entity(4)
	w.Advance(250)
	after, _ := w.Entity(4)
	if before.State.Origin == after.State.Origin {
		t.Error("mover did not move")
	}
	if after.State.Type != TypeMover || after.State.Time != 250 {
		t.Errorf("mover = %+v", after.State)
	}
	bl, ok := w.Baseline(4)
	if !ok || bl.Type != TypeMover || bl.ModelIndex != after.State.ModelIndex {
		t.Errorf("baseline = %+v", bl)
	}
}

func TestWorld_Entities(t *testing.T) {
	w := newTestWorld(t, Config{Movers: 2})
	if got := w.EntityCount(); got != 7 {
		t.Fatalf("EntityCount = %d, want 7", got)
	}
	if _, ok := w.Entity(1); ok {
		t.Error("empty player slot present")
	}

	join(t, w, 1, "alice")
	e, ok := w.Entity(1)
	if !ok || e.State.Type != TypePlayer || e.Flags != server.FlagNotSingleClient || e.SingleClient != 1 {
		t.Errorf("player entity = %+v, %v", e, ok)
	}

	score, ok := w.Entity(6)
	if !ok || score.Flags != server.FlagBroadcast || score.State.Generic1 != 1 {
		t.Errorf("score line = %+v, %v", score, ok)
	}
	if _, ok := w.Entity(7); ok {
		t.Error("entity past the end present")
	}
	if _, ok := w.Baseline(7); ok {
		t.Error("baseline past the end present")
	}

	w.ClientDisconnect(1)
	if _, ok := w.Entity(1); ok {
		t.Error("player present after disconnect")
	}
}

func TestWorld_Visible(t *testing.T) {
	w := newTestWorld(t, Config{ViewRadius: 100})
	join(t, w, 0, "a")
	join(t, w, 1, "b")
	w.players[0].ps.Origin = [3]float32{0, 0, 0}
	w.players[1].ps.Origin = [3]float32{60, 60, 0}

	viewer := w.PlayerState(0)
	if !w.Visible(0, &viewer, 1) {
		t.Error("player 1 at distance 85 not visible")
	}
	w.players[1].ps.Origin = [3]float32{90, 90, 0}
	if w.Visible(0, &viewer, 1) {
		t.Error("player 1 at distance 127 visible")
	}
	if w.Visible(0, &viewer, 3) {
		t.Error("empty slot visible")
	}
}

func TestWorld_ClientThink(t *testing.T) {
	w := newTestWorld(t, Config{Speed: 100, Size: 1000})
	join(t, w, 0, "runner")
	w.players[0].ps.Origin = [3]float32{}

	tests := []struct {
		name     string
		cmd      gamestate.UserCmd
		wantX    float64
		wantY    float64
		wantTime int32
	}{
		// Facing yaw 0 is +x; right is -y.
		{"forward", gamestate.UserCmd{ServerTime: 200, ForwardMove: 127}, 20, 0, 200},
		{"right", gamestate.UserCmd{ServerTime: 400, RightMove: 127}, 20, -20, 400},
		{"turned_forward", gamestate.UserCmd{ServerTime: 600, ForwardMove: 127, Angles: [3]int32{0, AngleToShort(90), 0}}, 20, 0, 600},
		{"stale_command", gamestate.UserCmd{ServerTime: 500, ForwardMove: 127}, 20, 0, 600},
		// Long gaps are capped at 200ms.
		{"capped_gap", gamestate.UserCmd{ServerTime: 5000, ForwardMove: 127}, 40, 0, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.ClientThink(0, tt.cmd)
			ps := w.PlayerState(0)
			if math.Abs(float64(ps.Origin[0])-tt.wantX) > 0.01 || math.Abs(float64(ps.Origin[1])-tt.wantY) > 0.01 {
				t.Errorf("origin = %v, want (%v, %v)", ps.Origin, tt.wantX, tt.wantY)
			}
			if ps.CommandTime != tt.wantTime {
				t.Errorf("command time = %d", ps.CommandTime)
			}
		})
	}
}

func TestWorld_ClampsToArena(t *testing.T) {
	w := newTestWorld(t, Config{Speed: 10000, Size: 100})
	join(t, w, 0, "runner")
	w.ClientThink(0, gamestate.UserCmd{ServerTime: 200, ForwardMove: 127})
	if x := w.PlayerState(0).Origin[0]; x != 100 {
		t.Errorf("x = %v, want 100", x)
	}
}

func TestWorld_Password(t *testing.T) {
	w := newTestWorld(t, Config{Password: "secret"})
	var info protocol.Info
	info.Set("name", "x")
	if err := w.ClientConnect(0, info); !errors.Is(err, ErrBadPassword) {
		t.Errorf("err = %v, want ErrBadPassword", err)
	}
	info.Set("password", "secret")
	if err := w.ClientConnect(0, info); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestWorld_Commands(t *testing.T) {
	w := newTestWorld(t, Config{})
	join(t, w, 0, "alice")
	join(t, w, 1, "bob")

	var said []string
	w.OnSay = func(num int, name, text string) {
		said = append(said, name+": "+text)
	}
	w.ClientCommand(0, []string{"say", "hello", "there"})
	if len(said) != 1 || said[0] != "alice: hello there" {
		t.Errorf("said = %q", said)
	}

	w.players[1].ps.Origin = w.players[0].ps.Origin
	w.players[1].ps.Origin[0] += 10
	w.ClientCommand(0, []string{"tag", "1"})
	if got := w.PlayerState(0).Persistant[0]; got != 1 {
		t.Errorf("score after tag = %d", got)
	}
	if w.players[1].ps.Origin == w.players[0].ps.Origin {
		t.Error("tagged player not respawned")
	}
	w.ClientCommand(0, []string{"tag", "0"})
	w.ClientCommand(0, []string{"tag", "x"})
	if got := w.PlayerState(0).Persistant[0]; got != 1 {
		t.Errorf("score after invalid tags = %d", got)
	}

	w.ClientCommand(1, []string{"kill"})
	if got := w.PlayerState(1).Persistant[0]; got != -1 {
		t.Errorf("score after kill = %d", got)
	}
	if s, _ := w.Entity(w.scorelineNum()); s.State.Frame != 1 {
		t.Errorf("top score = %d", s.State.Frame)
	}
	w.ClientCommand(0, nil)
	w.ClientCommand(0, []string{"unknown"})
}
