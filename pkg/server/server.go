package server

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/reliable"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/telemetry"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/transport"
)

// Server owns the client slots and drives snapshots for one world.
//
// A Server is not safe for concurrent use: every method except Status and
// HTTPHandler must be called from the goroutine that calls Frame.
type Server struct {
	cfg       *Config
	world     World
	game      Game
	transport netchan.Transport
	env       *netchan.Env
	tables    *gamestate.Tables
	logger    *slog.Logger
	metrics   Metrics
	tracer    *telemetry.Tracer
	clock     func() time.Time

	ws            *transport.WebSocketServer
	gatherer      prometheus.Gatherer
	recordingDone RecordingDone

	clients       []*Client
	challenges    map[string]challenge
	configstrings [protocol.MaxConfigstrings]string
	oob           *Commands

	serverID int32
	time     int32 // milliseconds since start
	frame    int64

	msg     *bitstream.Message
	scratch *bitstream.Message

	status atomic.Pointer[StatusSnapshot]
}

// Option configures a Server.
type Option func(*Server)

// WithGame sets the game callbacks.
func WithGame(g Game) Option {
	return func(s *Server) {
		s.game = g
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the span source.
func WithTracer(t *telemetry.Tracer) Option {
	return func(s *Server) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for frame timing and delayed transports.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithWebSocket mounts the WebSocket transport on HTTPHandler at /ws.
func WithWebSocket(ws *transport.WebSocketServer) Option {
	return func(s *Server) {
		s.ws = ws
	}
}

// WithGatherer serves the gatherer's metrics on HTTPHandler at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRecordingDone sets the callback run when a demo recording ends.
func WithRecordingDone(fn RecordingDone) Option {
	return func(s *Server) {
		s.recordingDone = fn
	}
}

// New creates a Server for world that talks over t. Zero fields of cfg
// are filled from DefaultConfig.
func New(cfg *Config, world World, t netchan.Transport, opts ...Option) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		world:      world,
		transport:  t,
		logger:     slog.Default(),
		metrics:    NopMetrics{},
		tracer:     telemetry.NewTracer(),
		clock:      time.Now,
		challenges: make(map[string]challenge),
		serverID:   rand.Int32N(math.MaxInt32-1) + 1,
		msg:        bitstream.New(protocol.MaxMsgLen),
		scratch:    bitstream.New(protocol.MaxMsgLen),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.env = cfg.Env.Clone()
	if s.env.Logger == nil {
		s.env.Logger = s.logger
	}
	s.env.Metrics = s.metrics
	s.logger = s.logger.With("component", "server")
	s.tables = gamestate.NewTables(cfg.Priorities)
	s.oob = newCommands()

	s.clients = make([]*Client, cfg.MaxClients)
	for i := range s.clients {
		s.clients[i] = &Client{
			Num:          i,
			DeltaMessage: -1,
			commands:     reliable.New(cfg.ReliableWindow),
			frames:       NewSnapshotRing(protocol.PacketBackup),
			logger:       s.logger.With("client", i),
		}
	}

	s.SetConfigstring(CSServerInfo, s.serverInfo().String())
	s.publishStatus()
	return s, nil
}

// Config returns a copy of the server's configuration.
func (s *Server) Config() *Config {
	return s.cfg.Clone()
}

// ServerID identifies this server instance to its clients.
func (s *Server) ServerID() int32 {
	return s.serverID
}

// Time returns the server time in milliseconds.
func (s *Server) Time() int32 {
	return s.time
}

// Client returns slot num, or nil when num is out of range.
func (s *Server) Client(num int) *Client {
	if num < 0 || num >= len(s.clients) {
		return nil
	}
	return s.clients[num]
}

// Commands returns the out-of-band command dispatcher.
func (s *Server) Commands() *Commands {
	return s.oob
}

// ActiveClients returns the number of clients in the connected states.
func (s *Server) ActiveClients() int {
	n := 0
	for _, c := range s.clients {
		if c.State >= StateConnected {
			n++
		}
	}
	return n
}

type flusher interface {
	Flush(now time.Time) (int, error)
}

// Frame advances server time by msec, processes every waiting packet,
// drops silent clients and sends the frame's messages.
func (s *Server) Frame(ctx context.Context, msec int) error {
	start := s.clock()
	s.frame++
	ctx, span := s.tracer.StartFrame(ctx, s.frame, s.ActiveClients())

	s.time += int32(msec)
	s.poll(ctx)
	if f, ok := s.transport.(flusher); ok {
		if _, err := f.Flush(start); err != nil {
			s.logger.Warn("transport flush failed", "error", err)
		}
	}
	s.checkTimeouts()
	err := s.SendClientMessages(ctx)

	s.metrics.FrameDuration(s.clock().Sub(start))
	s.publishStatus()
	telemetry.EndSpan(span, err)
	return err
}

func (s *Server) poll(ctx context.Context) {
	for {
		from, data, ok := s.transport.ReceivePacket()
		if !ok {
			return
		}
		s.PacketEvent(ctx, from, data)
	}
}

// PacketEvent routes one received datagram. Out-of-band packets go to the
// command dispatcher; sequenced packets go to the client whose address and
// qport match.
func (s *Server) PacketEvent(ctx context.Context, from netchan.Address, packet []byte) {
	if protocol.IsOutOfBand(packet) {
		s.oob.Dispatch(s, from, packet[4:])
		return
	}
	h, err := protocol.ReadHeader(bitstream.Wrap(packet), true)
	if err != nil {
		s.logger.Debug("bad packet header", "from", from.String(), "error", err)
		return
	}

	for _, c := range s.clients {
		if c.State == StateFree || c.Channel == nil {
			continue
		}
		if !c.Address().EqualBase(from) || c.Channel.QPort() != h.QPort {
			continue
		}
		if c.State == StateZombie {
			return
		}
		if !c.Address().Equal(from) {
			c.logger.Info("client port changed", "old", c.Address().String(), "new", from.String())
			c.Channel.SetRemote(from)
		}
		if err := s.ProcessIncoming(ctx, c, packet); err != nil {
			c.logger.Debug("incoming message failed", "error", err)
		}
		return
	}

	// A client we no longer know keeps sending; tell it to stop.
	netchan.OutOfBandPrint(s.transport, from, protocol.OOBDisconnect)
}

func (s *Server) checkTimeouts() {
	timeout := int32(s.cfg.Timeout / time.Millisecond)
	zombie := int32(s.cfg.ZombieTime / time.Millisecond)
	for _, c := range s.clients {
		switch {
		case c.State == StateZombie && s.time-c.LastPacketTime > zombie:
			c.State = StateFree
			c.logger.Debug("slot freed")
		case c.State >= StateConnected && s.time-c.LastPacketTime > timeout:
			s.DropClient(c, protocol.ReasonTimedOut)
		}
	}
}

// DropClient disconnects c, sending reason with a final disconnect
// command. The slot turns zombie and is freed after ZombieTime.
func (s *Server) DropClient(c *Client, reason string) {
	if c.State <= StateZombie {
		return
	}
	s.sendDisconnect(c, reason)
	if s.game != nil {
		s.game.ClientDisconnect(c.Num)
	}
	if c.recording != nil {
		s.finishRecording(c)
	}

	c.State = StateZombie
	c.LastPacketTime = s.time
	c.DeltaMessage = -1
	c.frames.Clear()
	s.metrics.ClientDropped(reason)
	c.logger.Info("client dropped", "name", c.Name, "reason", reason)

	s.AddServerCommand(nil, "print "+protocol.Quote(c.Name+" "+reason))
}

// drop calls DropClient and returns the error describing it.
func (s *Server) drop(c *Client, op, reason string) error {
	s.DropClient(c, reason)
	return &ClientError{ClientNum: c.Num, Op: op, Err: &DropError{Reason: reason}}
}

// serverInfo builds the serverinfo configstring.
func (s *Server) serverInfo() protocol.Info {
	var info protocol.Info
	info.Set("sv_hostname", s.cfg.Hostname)
	info.Set("sv_maxclients", strconv.Itoa(s.cfg.MaxClients))
	info.Set("protocol", strconv.Itoa(protocol.Version))
	return info
}
