package server

import (
	"log/slog"
	"strconv"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/reliable"
)

// ClientState is the lifecycle state of a client slot.
type ClientState int32

const (
	// StateFree is an unused slot.
	StateFree ClientState = iota
	// StateZombie is a dropped client whose slot is held briefly so late
	// packets are not taken for a new connection.
	StateZombie
	// StateConnected has a channel but no gamestate yet.
	StateConnected
	// StatePrimed has been sent a gamestate and waits for the client's
	// first usercmd.
	StatePrimed
	// StateActive is in the game and receives delta snapshots.
	StateActive
)

// String returns the string representation of the state.
func (s ClientState) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateZombie:
		return "zombie"
	case StateConnected:
		return "connected"
	case StatePrimed:
		return "primed"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

// Client is one client slot. Fields are owned by the frame goroutine; read
// them only from there or through Server.Status.
type Client struct {
	Num      int
	State    ClientState
	Name     string
	Userinfo protocol.Info
	Channel  *netchan.Channel

	// LastClientCommand is the last reliable client command executed.
	LastClientCommand uint32

	// DeltaMessage is the acknowledged message the next snapshot is delta
	// encoded from, or -1 to request a full snapshot.
	DeltaMessage int64

	// MessageAcknowledge is the last server message the client received.
	MessageAcknowledge uint32

	// GamestateMessageNum is the sequence the last gamestate went out in.
	GamestateMessageNum uint32

	Rate             int   // bytes per second
	SnapshotMsec     int32 // minimum interval between snapshots
	NextSnapshotTime int32
	RateDelayed      bool

	LastPacketTime int32
	Ping           int

	commands  *reliable.Log
	frames    *SnapshotRing
	rateBound bool
	challenge int32

	lastUsercmd gamestate.UserCmd
	cmdBuf      [gamestate.MaxPacketUsercmds]gamestate.UserCmd

	recording *recording
	logger    *slog.Logger
}

// Address returns the client's network address.
func (c *Client) Address() netchan.Address {
	if c.Channel == nil {
		return netchan.Address{}
	}
	return c.Channel.Remote()
}

// Commands returns the log of reliable server commands for the client.
func (c *Client) Commands() *reliable.Log {
	return c.commands
}

// Frames returns the sent snapshot ring.
func (c *Client) Frames() *SnapshotRing {
	return c.frames
}

// Recording reports whether a demo is being recorded for the client.
func (c *Client) Recording() bool {
	return c.recording != nil
}

// applyUserinfo takes name, rate and snaps from the userinfo.
func (c *Client) applyUserinfo(cfg *Config) {
	c.Name = c.Userinfo.ValueForKey("name")
	if c.Name == "" {
		c.Name = "player" + strconv.Itoa(c.Num)
	}

	rate, _ := strconv.Atoi(c.Userinfo.ValueForKey("rate"))
	if rate <= 0 {
		rate = cfg.DefaultRate
	}
	if cfg.MinRate > 0 && rate < cfg.MinRate {
		rate = cfg.MinRate
	}
	if cfg.MaxRate > 0 && rate > cfg.MaxRate {
		rate = cfg.MaxRate
	}
	c.Rate = rate

	snaps, _ := strconv.Atoi(c.Userinfo.ValueForKey("snaps"))
	if snaps <= 0 {
		snaps = cfg.DefaultSnaps
	}
	snaps = min(snaps, cfg.FPS)
	c.SnapshotMsec = int32(1000 / snaps)
}
