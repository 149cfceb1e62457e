package client

import (
	"fmt"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// Config holds client settings.
type Config struct {
	// Name is the player name sent in the userinfo.
	// Default: "player"
	Name string `json:"name"`

	// Rate is the requested server to client byte rate.
	// Default: 25000
	Rate int `json:"rate"`

	// Snaps is the requested snapshots per second.
	// Default: 20
	Snaps int `json:"snaps"`

	// QPort identifies the client across NAT port changes. Zero picks a
	// random value.
	QPort uint16 `json:"qport"`

	// ResendInterval is how often getchallenge and connect are repeated
	// while unanswered.
	// Default: 3s
	ResendInterval time.Duration `json:"resend_interval"`

	// Timeout drops the connection after this long without a packet.
	// Default: 40s
	Timeout time.Duration `json:"timeout"`

	// Priorities must match the server's field priorities.
	Priorities gamestate.Priorities `json:"priorities"`

	// Env carries channel settings. Scramble must match the server.
	Env *netchan.Env `json:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:           "player",
		Rate:           25000,
		Snaps:          20,
		ResendInterval: 3 * time.Second,
		Timeout:        40 * time.Second,
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return DefaultConfig()
	}
	clone := *c
	if c.Env != nil {
		clone.Env = c.Env.Clone()
	}
	return &clone
}

func (c *Config) withDefaults() *Config {
	cfg := c.Clone()
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Rate == 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Snaps == 0 {
		cfg.Snaps = def.Snaps
	}
	if cfg.ResendInterval == 0 {
		cfg.ResendInterval = def.ResendInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Rate < 0 {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidConfig)
	}
	if c.Snaps < 0 {
		return fmt.Errorf("%w: snaps must not be negative", ErrInvalidConfig)
	}
	if c.ResendInterval < 0 || c.Timeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if len(c.Name) > protocol.MaxInfoString/4 {
		return fmt.Errorf("%w: name too long", ErrInvalidConfig)
	}
	return nil
}
