package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/client"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type world struct {
	time     int32
	entities []gamestate.EntityState
}

func newWorld(n int) *world {
	w := &world{}
	for i := 0; i < n; i++ {
		w.entities = append(w.entities, gamestate.EntityState{
			Number:     int32(i),
			Type:       2,
			ModelIndex: int32(i),
			Origin:     [3]float32{float32(i), float32(2 * i), 0},
		})
	}
	return w
}

func (w *world) Time() int32      { return w.time }
func (w *world) EntityCount() int { return len(w.entities) }

func (w *world) Entity(num int) (server.Entity, bool) {
	return server.Entity{State: w.entities[num]}, true
}

func (w *world) Baseline(num int) (gamestate.EntityState, bool) {
	return gamestate.EntityState{Number: int32(num), Type: 2}, true
}

func (w *world) PlayerState(num int) gamestate.PlayerState {
	return gamestate.PlayerState{ClientNum: int32(num), CommandTime: w.time}
}

func (w *world) Visible(int, *gamestate.PlayerState, int) bool { return true }

type game struct {
	commands [][]string
	thinks   int
}

func (g *game) ClientConnect(int, protocol.Info) error { return nil }
func (g *game) ClientBegin(int)                        {}
func (g *game) ClientCommand(_ int, args []string)     { g.commands = append(g.commands, args) }
func (g *game) ClientThink(int, gamestate.UserCmd)     { g.thinks++ }
func (g *game) ClientDisconnect(int)                   {}

type pair struct {
	t     *testing.T
	srv   *server.Server
	cl    *client.Client
	world *world
	game  *game
	got   [][]string
}

func newLoopbackPair(t *testing.T, scfg *server.Config, ccfg *client.Config) *pair {
	t.Helper()
	srvEnd, cliEnd := transport.NewLoopbackPair()
	p := &pair{t: t, world: newWorld(12), game: &game{}}

	srv, err := server.New(scfg, p.world, srvEnd, server.WithGame(p.game), server.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	cl, err := client.New(ccfg, cliEnd, client.WithLogger(quiet()), client.WithCommandHandler(func(args []string) {
		p.got = append(p.got, args)
	}))
	if err != nil {
		t.Fatal(err)
	}
	p.srv, p.cl = srv, cl
	return p
}

func (p *pair) step() {
	p.t.Helper()
	if err := p.srv.Frame(context.Background(), 50); err != nil {
		p.t.Logf("server frame: %v", err)
	}
	p.world.time += 50
	if err := p.cl.Frame(50); err != nil {
		p.t.Logf("client frame: %v", err)
	}
}

func (p *pair) runUntil(cond func() bool, max int) {
	p.t.Helper()
	for range max {
		if cond() {
			return
		}
		p.step()
	}
	if !cond() {
		p.t.Fatalf("condition not met after %d frames (client %v)", max, p.cl.State())
	}
}

func (p *pair) connect() {
	p.t.Helper()
	if err := p.cl.Connect(netchan.LoopbackAddress()); err != nil {
		p.t.Fatal(err)
	}
	p.runUntil(func() bool { return p.cl.State() == client.StateActive }, 20)
}

func (p *pair) hasCommand(name string) []string {
	for _, args := range p.got {
		if args[0] == name {
			return args
		}
	}
	return nil
}

func TestClient_ConnectLoopback(t *testing.T) {
	p := newLoopbackPair(t, nil, &client.Config{Name: "looper"})
	p.connect()

	if p.cl.ClientNum() != 0 {
		t.Errorf("ClientNum() = %d", p.cl.ClientNum())
	}
	info := protocol.ParseInfo(p.cl.Configstring(server.CSServerInfo))
	if info.ValueForKey("sv_hostname") != "wolfnet" {
		t.Errorf("serverinfo = %q", p.cl.Configstring(server.CSServerInfo))
	}
	if got := p.srv.Client(0).Name; got != "looper" {
		t.Errorf("server sees name %q", got)
	}

	// Move an entity and wait for a delta snapshot carrying it.
	p.world.entities[4].Origin[2] = 77
	p.runUntil(func() bool {
		snap, ok := p.cl.Snapshot()
		if !ok {
			return false
		}
		e, _ := snap.Entity(4)
		return snap.DeltaNum != 0 && e.Origin[2] == 77
	}, 10)

	snap, _ := p.cl.Snapshot()
	if len(snap.Entities) != 12 {
		t.Errorf("entities = %d, want 12", len(snap.Entities))
	}
	for i, e := range snap.Entities {
		if e != p.world.entities[i] {
			t.Errorf("entity %d = %+v, want %+v", i, e, p.world.entities[i])
		}
	}
	if p.game.thinks == 0 {
		t.Error("no usercmds reached the game")
	}
}

func TestClient_ReliableCommands(t *testing.T) {
	p := newLoopbackPair(t, nil, nil)
	p.connect()

	if err := p.cl.AddReliableCommand("say hello there"); err != nil {
		t.Fatal(err)
	}
	if err := p.srv.AddServerCommand(p.srv.Client(0), `print "welcome"`); err != nil {
		t.Fatal(err)
	}
	p.runUntil(func() bool { return len(p.game.commands) > 0 && p.hasCommand("print") != nil }, 10)

	if got := p.game.commands[0]; len(got) != 3 || got[1] != "hello" {
		t.Errorf("server got %v", got)
	}
	if got := p.hasCommand("print"); got[1] != "welcome" {
		t.Errorf("client got %v", got)
	}

	// Acknowledged commands leave the logs on both sides.
	p.step()
	p.step()
	if n := p.srv.Client(0).Commands().Pending(); n != 0 {
		t.Errorf("server pending = %d", n)
	}
}

func TestClient_Userinfo(t *testing.T) {
	p := newLoopbackPair(t, nil, nil)
	p.connect()

	if err := p.cl.SetUserinfo("name", "renamed"); err != nil {
		t.Fatal(err)
	}
	p.runUntil(func() bool { return p.srv.Client(0).Name == "renamed" }, 10)
}

func TestClient_Disconnect(t *testing.T) {
	p := newLoopbackPair(t, nil, nil)
	p.connect()

	if err := p.cl.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if p.cl.State() != client.StateDisconnected {
		t.Errorf("client state = %v", p.cl.State())
	}
	p.step()
	if got := p.srv.Client(0).State; got != server.StateZombie {
		t.Errorf("server state = %v, want zombie", got)
	}
	if err := p.cl.Disconnect(); !errors.Is(err, client.ErrNotConnected) {
		t.Errorf("second Disconnect() error = %v", err)
	}
}

func TestClient_Kicked(t *testing.T) {
	p := newLoopbackPair(t, nil, nil)
	p.connect()

	p.srv.DropClient(p.srv.Client(0), protocol.ReasonKicked)
	p.step()

	if p.cl.State() != client.StateDisconnected {
		t.Fatalf("client state = %v", p.cl.State())
	}
	if got := p.cl.DisconnectReason(); got != protocol.ReasonKicked {
		t.Errorf("DisconnectReason() = %q", got)
	}
	if p.hasCommand("disconnect") == nil {
		t.Error("disconnect not passed to the command handler")
	}
}

func TestClient_Timeout(t *testing.T) {
	_, end := transport.NewLoopbackPair()
	cl, err := client.New(&client.Config{Timeout: time.Second, ResendInterval: 200 * time.Millisecond}, end, client.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cl.Connect(netchan.LoopbackAddress()); err != nil {
		t.Fatal(err)
	}
	if err := cl.Connect(netchan.LoopbackAddress()); !errors.Is(err, client.ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v", err)
	}

	var frameErr error
	for range 25 {
		if frameErr = cl.Frame(50); frameErr != nil {
			break
		}
	}
	var de *client.DisconnectError
	if !errors.As(frameErr, &de) || de.Reason != protocol.ReasonTimedOut {
		t.Fatalf("Frame() error = %v, want timeout", frameErr)
	}
	if cl.State() != client.StateDisconnected {
		t.Errorf("state = %v", cl.State())
	}
}

func TestClient_UDP(t *testing.T) {
	srvUDP, err := transport.ListenUDP("127.0.0.1:0", quiet())
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer srvUDP.Close()
	cliUDP, err := transport.ListenUDP("127.0.0.1:0", quiet())
	if err != nil {
		t.Skipf("udp unavailable: %v", err)
	}
	defer cliUDP.Close()

	w := newWorld(3)
	srv, err := server.New(nil, w, srvUDP, server.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	cl, err := client.New(nil, cliUDP, client.WithLogger(quiet()))
	if err != nil {
		t.Fatal(err)
	}
	if err := cl.Connect(netchan.IPAddress(srvUDP.LocalAddr())); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for cl.State() != client.StateActive && time.Now().Before(deadline) {
		srv.Frame(context.Background(), 50)
		cl.Frame(50)
		time.Sleep(5 * time.Millisecond)
	}
	if cl.State() != client.StateActive {
		t.Fatalf("client state = %v, want active", cl.State())
	}
	snap, _ := cl.Snapshot()
	if len(snap.Entities) != 3 {
		t.Errorf("entities = %d, want 3", len(snap.Entities))
	}
}

func TestClient_Scrambled(t *testing.T) {
	senv := netchan.DefaultEnv()
	senv.Scramble, senv.ScrambleKey, senv.Logger = true, 0xBEEF, quiet()
	cenv := netchan.DefaultEnv()
	cenv.Scramble, cenv.ScrambleKey, cenv.Logger = true, 0xBEEF, quiet()

	p := newLoopbackPair(t, &server.Config{Env: senv}, &client.Config{Env: cenv})
	p.connect()
	if _, ok := p.cl.Snapshot(); !ok {
		t.Fatal("no snapshot over a scrambled channel")
	}
}
