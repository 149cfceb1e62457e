package server

import (
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// EntityFlags control which clients an entity is sent to.
type EntityFlags uint32

const (
	// FlagNoClient hides the entity from every client.
	FlagNoClient EntityFlags = 1 << iota
	// FlagBroadcast sends the entity to every client regardless of
	// visibility.
	FlagBroadcast
	// FlagSingleClient sends the entity only to Entity.SingleClient.
	FlagSingleClient
	// FlagNotSingleClient sends the entity to everyone but
	// Entity.SingleClient.
	FlagNotSingleClient
	// FlagPortal marks a portal surface, always sent.
	FlagPortal
	// FlagVisDummy marks a visibility helper, always sent.
	FlagVisDummy
)

// Entity is one world entity as the server sees it.
type Entity struct {
	State        gamestate.EntityState
	Flags        EntityFlags
	SingleClient int
}

// World is the game simulation the server snapshots. Entity numbers run
// from 0 to EntityCount()-1; absent numbers report ok=false.
type World interface {
	Time() int32
	EntityCount() int
	Entity(num int) (Entity, bool)
	// Baseline is the state an entity is delta encoded from when a client
	// has no previous copy of it.
	Baseline(num int) (gamestate.EntityState, bool)
	PlayerState(client int) gamestate.PlayerState
	Visible(client int, viewer *gamestate.PlayerState, num int) bool
}

// Game receives client lifecycle events and input. All methods are called
// from the frame goroutine.
type Game interface {
	// ClientConnect may reject a connection by returning an error; its
	// text is sent to the client.
	ClientConnect(num int, userinfo protocol.Info) error
	ClientBegin(num int)
	ClientCommand(num int, args []string)
	ClientThink(num int, cmd gamestate.UserCmd)
	ClientDisconnect(num int)
}
