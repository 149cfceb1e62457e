package netchan

import "log/slog"

// Transport moves raw datagrams. Implementations must not block:
// ReceivePacket returns ok=false when nothing is waiting, and SendPacket
// either queues the datagram or fails. SendPacket must not retain data
// after it returns.
type Transport interface {
	SendPacket(to Address, data []byte) error
	ReceivePacket() (from Address, data []byte, ok bool)
	Close() error
}

// Metrics receives channel level counters.
type Metrics interface {
	PacketSent(bytes int, fragment bool)
	PacketReceived(bytes int)
	PacketDropped(reason string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) PacketSent(int, bool) {}
func (NopMetrics) PacketReceived(int)   {}
func (NopMetrics) PacketDropped(string) {}

// Drop reasons reported to Metrics.
const (
	DropDuplicate  = "duplicate"
	DropStale      = "stale_fragment"
	DropMalformed  = "malformed"
	DropOutOfOrder = "out_of_order_fragment"
	DropLost       = "lost"
)

// Env carries the settings and sinks shared by every channel of one server
// or client instance. Two instances in one process never share an Env.
type Env struct {
	// Logger receives channel diagnostics.
	// Default: slog.Default()
	Logger *slog.Logger

	// Metrics receives packet counters.
	// Default: NopMetrics
	Metrics Metrics

	// ShowPackets logs every packet sent and received at debug level.
	ShowPackets bool

	// ShowDrop logs dropped and discarded packets at debug level.
	ShowDrop bool

	// Scramble obfuscates message payloads on the wire. Both ends must
	// agree on Scramble and ScrambleKey. This is not encryption.
	Scramble    bool
	ScrambleKey uint32

	// PaceFragments sends only the first fragment of a large message per
	// Transmit; the owner calls TransmitNextFragment on later ticks.
	PaceFragments bool
}

// DefaultEnv returns an Env with default sinks.
func DefaultEnv() *Env {
	return &Env{
		Logger:  slog.Default(),
		Metrics: NopMetrics{},
	}
}

// Clone returns a copy of the Env.
func (e *Env) Clone() *Env {
	if e == nil {
		return DefaultEnv()
	}
	c := *e
	return &c
}

func (e *Env) withDefaults() *Env {
	c := e.Clone()
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	return c
}
