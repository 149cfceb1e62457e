package server

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/client"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

const testQPort = 1234

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testWorld is a static entity table. Entities listed in hidden fail the
// visibility test.
type testWorld struct {
	time      int32
	count     int
	entities  map[int]Entity
	baselines map[int]gamestate.EntityState
	hidden    map[int]bool
}

func newTestWorld(n int) *testWorld {
	w := &testWorld{
		count:     n,
		entities:  make(map[int]Entity),
		baselines: make(map[int]gamestate.EntityState),
		hidden:    make(map[int]bool),
	}
	for i := 0; i < n; i++ {
		st := gamestate.EntityState{Number: int32(i), Type: 1, ModelIndex: int32(i + 1)}
		st.Origin = [3]float32{float32(i * 10), 0, 0}
		w.entities[i] = Entity{State: st}
		w.baselines[i] = gamestate.EntityState{Number: int32(i), Type: 1}
	}
	return w
}

func (w *testWorld) Time() int32      { return w.time }
func (w *testWorld) EntityCount() int { return w.count }

func (w *testWorld) Entity(num int) (Entity, bool) {
	e, ok := w.entities[num]
	return e, ok
}

func (w *testWorld) Baseline(num int) (gamestate.EntityState, bool) {
	bl, ok := w.baselines[num]
	return bl, ok
}

func (w *testWorld) PlayerState(client int) gamestate.PlayerState {
	return gamestate.PlayerState{ClientNum: int32(client), CommandTime: w.time}
}

func (w *testWorld) Visible(_ int, _ *gamestate.PlayerState, num int) bool {
	return !w.hidden[num]
}

// testGame records the callbacks it receives.
type testGame struct {
	reject      error
	connected   []int
	begun       []int
	commands    [][]string
	thinks      []int32
	disconnects []int
}

func (g *testGame) ClientConnect(num int, _ protocol.Info) error {
	if g.reject != nil {
		return g.reject
	}
	g.connected = append(g.connected, num)
	return nil
}

func (g *testGame) ClientBegin(num int) { g.begun = append(g.begun, num) }

func (g *testGame) ClientCommand(_ int, args []string) { g.commands = append(g.commands, args) }

func (g *testGame) ClientThink(_ int, cmd gamestate.UserCmd) { g.thinks = append(g.thinks, cmd.ServerTime) }

func (g *testGame) ClientDisconnect(num int) { g.disconnects = append(g.disconnects, num) }

// harness drives a server over loopback and plays one client by hand.
type harness struct {
	t      *testing.T
	srv    *Server
	world  *testWorld
	game   *testGame
	end    *transport.Loopback
	ch     *netchan.Channel
	parser *client.Parser

	oob      []string
	commands [][]string
	received int
	ctx      context.Context
}

func newHarness(t *testing.T, cfg *Config, opts ...Option) *harness {
	t.Helper()
	srvEnd, cliEnd := transport.NewLoopbackPair()
	h := &harness{
		t:     t,
		world: newTestWorld(8),
		game:  &testGame{},
		end:   cliEnd,
		ctx:   context.Background(),
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts = append([]Option{WithGame(h.game), WithLogger(discardLogger())}, opts...)
	srv, err := New(cfg, h.world, srvEnd, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.srv = srv

	env := netchan.DefaultEnv()
	env.Logger = discardLogger()
	h.ch = netchan.New(env, netchan.ClientSide, cliEnd, netchan.LoopbackAddress(), testQPort)
	h.parser = client.NewParser(nil, discardLogger())
	h.parser.OnCommand = func(args []string) {
		h.commands = append(h.commands, args)
	}
	return h
}

// frame runs one 50ms server frame and reads everything it sent.
func (h *harness) frame() {
	h.t.Helper()
	if err := h.srv.Frame(h.ctx, 50); err != nil {
		h.t.Logf("Frame() error = %v", err)
	}
	h.world.time += 50
	h.collect()
}

func (h *harness) collect() {
	h.t.Helper()
	for {
		_, data, ok := h.end.ReceivePacket()
		if !ok {
			return
		}
		if protocol.IsOutOfBand(data) {
			h.oob = append(h.oob, string(data[4:]))
			continue
		}
		msg, res := h.ch.Process(data)
		if res != netchan.Delivered {
			continue
		}
		h.received++
		if err := h.parser.Parse(h.ch.IncomingSequence(), msg); err != nil {
			h.t.Fatalf("Parse() error = %v", err)
		}
	}
}

func (h *harness) sendOOB(text string) {
	h.t.Helper()
	if err := netchan.OutOfBandPrint(h.end, netchan.LoopbackAddress(), "%s", text); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) lastOOB() string {
	if len(h.oob) == 0 {
		return ""
	}
	return h.oob[len(h.oob)-1]
}

func userinfo(name string, qport int) string {
	var info protocol.Info
	info.Set("name", name)
	info.Set("protocol", strconv.Itoa(protocol.Version))
	info.Set("qport", strconv.Itoa(qport))
	info.Set("challenge", "0")
	return info.String()
}

// connect admits the client and runs the frame that sends the gamestate.
func (h *harness) connect() *Client {
	h.t.Helper()
	h.sendOOB("connect " + protocol.Quote(userinfo("tester", testQPort)))
	h.frame()
	if got := h.lastOOB(); got != protocol.OOBConnectResponse {
		h.t.Fatalf("connect reply = %q, want %q", got, protocol.OOBConnectResponse)
	}
	c := h.srv.Client(0)
	if c.State != StatePrimed {
		h.t.Fatalf("state after connect = %v, want primed", c.State)
	}
	return c
}

// send transmits a client message acknowledging ack.
func (h *harness) send(serverID int32, ack uint32, body func(m *bitstream.Message)) {
	h.t.Helper()
	m := bitstream.New(protocol.MaxMsgLen)
	m.WriteInt32(serverID)
	m.WriteInt32(int32(ack))
	m.WriteInt32(int32(h.parser.ServerCommandSequence()))
	if body != nil {
		body(m)
	}
	m.WriteUint8(uint8(protocol.ClcEOF))
	if err := h.ch.Transmit(m.Bytes()); err != nil {
		h.t.Fatal(err)
	}
}

func writeMove(m *bitstream.Message, noDelta bool, cmds ...gamestate.UserCmd) {
	op := protocol.ClcMove
	if noDelta {
		op = protocol.ClcMoveNoDelta
	}
	m.WriteUint8(uint8(op))
	m.WriteUint8(uint8(len(cmds)))
	var from *gamestate.UserCmd
	for i := range cmds {
		gamestate.DefaultTables().WriteDeltaUsercmd(m, from, &cmds[i])
		from = &cmds[i]
	}
}

func writeClientCommand(m *bitstream.Message, seq uint32, text string) {
	m.WriteUint8(uint8(protocol.ClcClientCommand))
	m.WriteInt32(int32(seq))
	m.WriteString(text)
}

// move sends usercmds acknowledging the newest message received.
func (h *harness) move(noDelta bool, cmds ...gamestate.UserCmd) {
	h.t.Helper()
	h.send(h.parser.ServerID(), h.ch.IncomingSequence(), func(m *bitstream.Message) {
		writeMove(m, noDelta, cmds...)
	})
}

// activate connects and enters the world; the frame after returns the
// first active snapshot.
func (h *harness) activate() *Client {
	h.t.Helper()
	c := h.connect()
	h.move(true, gamestate.UserCmd{ServerTime: 1})
	h.frame()
	if c.State != StateActive {
		h.t.Fatalf("state = %v, want active", c.State)
	}
	return c
}

func (h *harness) snapshot() *client.Snapshot {
	h.t.Helper()
	snap, ok := h.parser.Snapshot()
	if !ok {
		h.t.Fatal("no snapshot received")
	}
	return snap
}

func (h *harness) hasCommand(name string) ([]string, bool) {
	for _, args := range h.commands {
		if args[0] == name {
			return args, true
		}
	}
	return nil, false
}

func entityNumbers(ents []gamestate.EntityState) string {
	var b strings.Builder
	for i, e := range ents {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(e.Number)))
	}
	return b.String()
}
