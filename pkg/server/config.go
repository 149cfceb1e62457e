package server

import (
	"fmt"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Config holds the server settings.
type Config struct {
	// Hostname is reported in serverinfo and status responses.
	// Default: "wolfnet".
	Hostname string `json:"hostname"`

	// MaxClients is the number of client slots.
	// Default: 16.
	MaxClients int `json:"max_clients"`

	// FPS is the intended frame rate. It also caps how many snapshots per
	// second a client may request.
	// Default: 20.
	FPS int `json:"fps"`

	// Timeouts

	// Timeout drops a connected client that has been silent this long.
	// Default: 40 seconds.
	Timeout time.Duration `json:"timeout"`

	// ZombieTime is how long a dropped slot stays reserved before reuse.
	// Default: 2 seconds.
	ZombieTime time.Duration `json:"zombie_time"`

	// Rate control

	// MinRate and MaxRate clamp the rate a client asks for, in bytes per
	// second. Zero disables the bound.
	// Default: 1000 and 90000.
	MinRate int `json:"min_rate"`
	MaxRate int `json:"max_rate"`

	// DefaultRate applies when the userinfo carries no rate.
	// Default: 25000.
	DefaultRate int `json:"default_rate"`

	// DefaultSnaps is the snapshot rate when the userinfo carries no snaps.
	// Default: 20.
	DefaultSnaps int `json:"default_snaps"`

	// HeaderRateBytes is the per-packet overhead counted against the rate.
	// Default: 48.
	HeaderRateBytes int `json:"header_rate_bytes"`

	// Limits

	// MaxSnapshotEntities caps the entities per snapshot. Entities beyond
	// the cap are dropped, highest numbers first.
	// Default: protocol.MaxSnapshotEntities.
	MaxSnapshotEntities int `json:"max_snapshot_entities"`

	// ReliableWindow is the number of unacknowledged server commands a
	// client may fall behind before it is dropped. Must be a power of two.
	// Default: protocol.MaxReliableCommands.
	ReliableWindow int `json:"reliable_window"`

	// RconPassword enables remote console access. Empty disables rcon.
	RconPassword string `json:"rcon_password,omitempty"`

	// Priorities overrides the delta field order. Clients must use the same
	// values.
	Priorities gamestate.Priorities `json:"priorities,omitempty"`

	// Env holds the channel settings shared by all clients.
	Env *netchan.Env `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Hostname:            "wolfnet",
		MaxClients:          16,
		FPS:                 20,
		Timeout:             40 * time.Second,
		ZombieTime:          2 * time.Second,
		MinRate:             1000,
		MaxRate:             90000,
		DefaultRate:         25000,
		DefaultSnaps:        20,
		HeaderRateBytes:     48,
		MaxSnapshotEntities: protocol.MaxSnapshotEntities,
		ReliableWindow:      protocol.MaxReliableCommands,
		Env:                 netchan.DefaultEnv(),
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Env = c.Env.Clone()
	return &clone
}

// withDefaults fills zero fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := c.Clone()
	if out.Hostname == "" {
		out.Hostname = d.Hostname
	}
	if out.MaxClients == 0 {
		out.MaxClients = d.MaxClients
	}
	if out.FPS == 0 {
		out.FPS = d.FPS
	}
	if out.Timeout == 0 {
		out.Timeout = d.Timeout
	}
	if out.ZombieTime == 0 {
		out.ZombieTime = d.ZombieTime
	}
	if out.DefaultRate == 0 {
		out.DefaultRate = d.DefaultRate
	}
	if out.DefaultSnaps == 0 {
		out.DefaultSnaps = d.DefaultSnaps
	}
	if out.HeaderRateBytes == 0 {
		out.HeaderRateBytes = d.HeaderRateBytes
	}
	if out.MaxSnapshotEntities == 0 {
		out.MaxSnapshotEntities = d.MaxSnapshotEntities
	}
	if out.ReliableWindow == 0 {
		out.ReliableWindow = d.ReliableWindow
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.MaxClients < 1 || c.MaxClients > protocol.MaxClients:
		return fmt.Errorf("%w: max_clients %d not in [1, %d]", ErrInvalidConfig, c.MaxClients, protocol.MaxClients)
	case c.FPS < 1 || c.FPS > 1000:
		return fmt.Errorf("%w: fps %d not in [1, 1000]", ErrInvalidConfig, c.FPS)
	case c.Timeout <= 0 || c.ZombieTime < 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.MinRate < 0 || c.MaxRate < 0 || (c.MaxRate > 0 && c.MinRate > c.MaxRate):
		return fmt.Errorf("%w: min_rate %d above max_rate %d", ErrInvalidConfig, c.MinRate, c.MaxRate)
	case c.DefaultRate <= 0 || c.DefaultSnaps <= 0 || c.HeaderRateBytes < 0:
		return fmt.Errorf("%w: default_rate, default_snaps and header_rate_bytes must be positive", ErrInvalidConfig)
	case c.MaxSnapshotEntities < 1 || c.MaxSnapshotEntities > protocol.MaxSnapshotEntities:
		return fmt.Errorf("%w: max_snapshot_entities %d not in [1, %d]", ErrInvalidConfig, c.MaxSnapshotEntities, protocol.MaxSnapshotEntities)
	case c.ReliableWindow < 2 || c.ReliableWindow&(c.ReliableWindow-1) != 0:
		return fmt.Errorf("%w: reliable_window %d is not a power of two", ErrInvalidConfig, c.ReliableWindow)
	}
	return nil
}
