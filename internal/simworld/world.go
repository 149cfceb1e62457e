// Package simworld is a small deterministic arena used by wolfnet serve and
// by tests: players move with their user commands, movers circle fixed
// points and a broadcast entity carries the score line.
package simworld

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/server"
)

// Entity types.
const (
	TypePlayer    = 1
	TypeMover     = 2
	TypeScoreline = 3
)

// ErrBadPassword rejects a connect whose userinfo password does not match.
var ErrBadPassword = errors.New("bad password")

// Config describes the arena.
type Config struct {
	// MaxClients reserves the first entity numbers for players. It must
	// match the server's MaxClients.
	MaxClients int

	// Movers is the number of circling entities.
	// Default: 64.
	Movers int

	// Size is the half width of the square arena.
	// Default: 2048.
	Size float64

	// ViewRadius is how far a player sees.
	// Default: 1024.
	ViewRadius float64

	// Speed is the player speed in units per second.
	// Default: 320.
	Speed float64

	// Seed fixes the mover layout.
	// Default: 1.
	Seed uint64

	// Password, when set, must be sent as the userinfo "password" key.
	Password string
}

func (c Config) withDefaults() Config {
	if c.Movers == 0 {
		c.Movers = 64
	}
	if c.Size == 0 {
		c.Size = 2048
	}
	if c.ViewRadius == 0 {
		c.ViewRadius = 1024
	}
	if c.Speed == 0 {
		c.Speed = 320
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	return c
}

type player struct {
	inGame    bool
	name      string
	score     int32
	ps        gamestate.PlayerState
	lastThink int32
}

type mover struct {
	center [2]float64
	radius float64
	period float64 // milliseconds per turn
	phase  float64
	model  int32
	origin [3]float32
	yaw    float32
}

// World implements server.World and server.Game. It is driven from the
// server's frame goroutine.
type World struct {
	cfg     Config
	logger  *slog.Logger
	time    int32
	players []player
	movers  []mover

	// OnSay receives chat from the "say" client command.
	OnSay func(num int, name, text string)
}

var (
	_ server.World = (*World)(nil)
	_ server.Game  = (*World)(nil)
)

// New builds the arena. The mover layout depends only on cfg.
func New(cfg Config, logger *slog.Logger) (*World, error) {
	cfg = cfg.withDefaults()
	if cfg.MaxClients < 1 || cfg.MaxClients+cfg.Movers+1 > gamestate.EntityNumWorld {
		return nil, fmt.Errorf("simworld: %d clients and %d movers do not fit %d entities",
			cfg.MaxClients, cfg.Movers, gamestate.EntityNumWorld)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &World{
		cfg:     cfg,
		logger:  logger.With("component", "simworld"),
		players: make([]player, cfg.MaxClients),
		movers:  make([]mover, cfg.Movers),
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	for i := range w.movers {
		m := &w.movers[i]
		m.center = [2]float64{(rng.Float64()*2 - 1) * cfg.Size, (rng.Float64()*2 - 1) * cfg.Size}
		m.radius = 32 + rng.Float64()*224
		m.period = 2000 + rng.Float64()*8000
		m.phase = rng.Float64() * 2 * math.Pi
		m.model = int32(1 + rng.IntN(8))
	}
	w.moveMovers()
	return w, nil
}

// Advance moves the world forward by msec milliseconds.
func (w *World) Advance(msec int) {
	w.time += int32(msec)
	w.moveMovers()
}

func (w *World) moveMovers() {
	for i := range w.movers {
		m := &w.movers[i]
		a := m.phase + 2*math.Pi*float64(w.time)/m.period
		m.origin = [3]float32{
			float32(m.center[0] + m.radius*math.Cos(a)),
			float32(m.center[1] + m.radius*math.Sin(a)),
			0,
		}
		m.yaw = float32(math.Mod(a*180/math.Pi+90, 360))
	}
}

// Time returns the world time in milliseconds.
func (w *World) Time() int32 { return w.time }

// EntityCount covers the player slots, the movers and the score line.
func (w *World) EntityCount() int {
	return w.cfg.MaxClients + len(w.movers) + 1
}

func (w *World) scorelineNum() int {
	return w.cfg.MaxClients + len(w.movers)
}

// Entity returns entity num. Player slots are present only while the
// player is in the game.
func (w *World) Entity(num int) (server.Entity, bool) {
	switch {
	case num < 0:
		return server.Entity{}, false
	case num < w.cfg.MaxClients:
		p := &w.players[num]
		if !p.inGame {
			return server.Entity{}, false
		}
		st := gamestate.EntityState{
			Type:      TypePlayer,
			ClientNum: int32(num),
			Origin:    p.ps.Origin,
			Angles:    p.ps.ViewAngles,
			Time:      p.ps.CommandTime,
		}
		st.Pos.Base = p.ps.Origin
		st.Pos.Delta = p.ps.Velocity
		// A player sees itself through its player state.
		return server.Entity{State: st, Flags: server.FlagNotSingleClient, SingleClient: num}, true
	case num < w.scorelineNum():
		m := &w.movers[num-w.cfg.MaxClients]
		st := gamestate.EntityState{
			Type:       TypeMover,
			ModelIndex: m.model,
			Origin:     m.origin,
			Angles:     [3]float32{0, m.yaw, 0},
			Time:       w.time,
		}
		st.Pos.Base = m.origin
		return server.Entity{State: st}, true
	case num == w.scorelineNum():
		st := gamestate.EntityState{
			Type:     TypeScoreline,
			Generic1: int32(w.Players()),
			Frame:    w.topScore(),
		}
		return server.Entity{State: st, Flags: server.FlagBroadcast}, true
	}
	return server.Entity{}, false
}

// Baseline returns the spawn state of entity num.
func (w *World) Baseline(num int) (gamestate.EntityState, bool) {
	switch {
	case num < 0 || num > w.scorelineNum():
		return gamestate.EntityState{}, false
	case num < w.cfg.MaxClients:
		return gamestate.EntityState{Type: TypePlayer, ClientNum: int32(num)}, true
	case num < w.scorelineNum():
		m := &w.movers[num-w.cfg.MaxClients]
		return gamestate.EntityState{Type: TypeMover, ModelIndex: m.model}, true
	default:
		return gamestate.EntityState{Type: TypeScoreline}, true
	}
}

// PlayerState returns the view of client.
func (w *World) PlayerState(client int) gamestate.PlayerState {
	if client < 0 || client >= len(w.players) {
		return gamestate.PlayerState{}
	}
	ps := w.players[client].ps
	ps.ClientNum = int32(client)
	ps.Persistant[0] = w.players[client].score
	return ps
}

// Visible reports whether entity num is within the view radius of viewer.
func (w *World) Visible(_ int, viewer *gamestate.PlayerState, num int) bool {
	e, ok := w.Entity(num)
	if !ok {
		return false
	}
	dx := float64(e.State.Origin[0] - viewer.Origin[0])
	dy := float64(e.State.Origin[1] - viewer.Origin[1])
	return dx*dx+dy*dy <= w.cfg.ViewRadius*w.cfg.ViewRadius
}

// Players returns the number of players in the game.
func (w *World) Players() int {
	n := 0
	for i := range w.players {
		if w.players[i].inGame {
			n++
		}
	}
	return n
}

func (w *World) topScore() int32 {
	var top int32
	for i := range w.players {
		if w.players[i].inGame {
			top = max(top, w.players[i].score)
		}
	}
	return top
}

// ClientConnect checks the password and reserves the slot.
func (w *World) ClientConnect(num int, userinfo protocol.Info) error {
	if w.cfg.Password != "" && userinfo.ValueForKey("password") != w.cfg.Password {
		return ErrBadPassword
	}
	w.players[num] = player{name: userinfo.ValueForKey("name")}
	w.logger.Debug("player connected", "client", num, "name", w.players[num].name)
	return nil
}

// ClientBegin spawns the player.
func (w *World) ClientBegin(num int) {
	p := &w.players[num]
	p.inGame = true
	p.lastThink = w.time
	w.spawn(num)
}

// spawn places player num on a ring around the centre, spread by slot.
func (w *World) spawn(num int) {
	p := &w.players[num]
	a := 2 * math.Pi * float64(num) / float64(w.cfg.MaxClients)
	r := w.cfg.Size / 4
	p.ps.Origin = [3]float32{float32(r * math.Cos(a)), float32(r * math.Sin(a)), 0}
	p.ps.Velocity = [3]float32{}
	p.ps.ViewAngles = [3]float32{0, float32(math.Mod(a*180/math.Pi+180, 360)), 0}
	p.ps.EventSequence++
}

// ClientCommand runs say, kill and score commands.
func (w *World) ClientCommand(num int, args []string) {
	if len(args) == 0 {
		return
	}
	p := &w.players[num]
	switch strings.ToLower(args[0]) {
	case "say":
		if w.OnSay != nil && len(args) > 1 {
			w.OnSay(num, p.name, strings.Join(args[1:], " "))
		}
	case "kill":
		if p.inGame {
			p.score--
			w.spawn(num)
		}
	case "tag":
		// tag <num>: score a point on a player within reach.
		if len(args) < 2 || !p.inGame {
			return
		}
		var target int
		if _, err := fmt.Sscan(args[1], &target); err != nil || target < 0 || target >= len(w.players) || target == num {
			return
		}
		t := &w.players[target]
		if !t.inGame {
			return
		}
		dx := float64(t.ps.Origin[0] - p.ps.Origin[0])
		dy := float64(t.ps.Origin[1] - p.ps.Origin[1])
		if dx*dx+dy*dy <= 64*64 {
			p.score++
			w.spawn(target)
		}
	default:
		w.logger.Debug("unknown client command", "client", num, "command", args[0])
	}
}

// ClientThink moves the player by one user command.
func (w *World) ClientThink(num int, cmd gamestate.UserCmd) {
	p := &w.players[num]
	if !p.inGame {
		return
	}
	if cmd.ServerTime <= p.lastThink {
		return
	}
	dt := min(float64(cmd.ServerTime-p.lastThink)/1000, 0.2)
	p.lastThink = cmd.ServerTime
	p.ps.CommandTime = cmd.ServerTime
	p.ps.ViewAngles = [3]float32{shortToAngle(cmd.Angles[0]), shortToAngle(cmd.Angles[1]), 0}

	yaw := float64(p.ps.ViewAngles[1]) * math.Pi / 180
	fwd, right := float64(cmd.ForwardMove), float64(cmd.RightMove)
	length := math.Hypot(fwd, right)
	if length == 0 {
		p.ps.Velocity = [3]float32{}
		return
	}
	fwd, right = fwd/length, right/length
	vx := (fwd*math.Cos(yaw) + right*math.Sin(yaw)) * w.cfg.Speed
	vy := (fwd*math.Sin(yaw) - right*math.Cos(yaw)) * w.cfg.Speed
	p.ps.Velocity = [3]float32{float32(vx), float32(vy), 0}
	p.ps.Origin[0] = float32(clamp(float64(p.ps.Origin[0])+vx*dt, -w.cfg.Size, w.cfg.Size))
	p.ps.Origin[1] = float32(clamp(float64(p.ps.Origin[1])+vy*dt, -w.cfg.Size, w.cfg.Size))
}

// ClientDisconnect frees the slot.
func (w *World) ClientDisconnect(num int) {
	w.logger.Debug("player left", "client", num, "name", w.players[num].name)
	w.players[num] = player{}
}

func shortToAngle(v int32) float32 {
	return float32(v&0xffff) * (360.0 / 65536)
}

// AngleToShort converts degrees to the wire angle used in user commands.
func AngleToShort(deg float64) int32 {
	return int32(deg*65536/360) & 0xffff
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
