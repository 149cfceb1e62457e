package client

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/bitstream"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/reliable"
)

// State is the connection state of a Client.
type State int32

const (
	StateDisconnected State = iota
	StateChallenging        // waiting for challengeResponse
	StateConnecting         // waiting for connectResponse
	StateConnected          // channel open, waiting for the gamestate
	StatePrimed             // gamestate received, waiting for the first snapshot
	StateActive             // receiving snapshots
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateChallenging:
		return "challenging"
	case StateConnecting:
		return "connecting"
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

// disconnectRepeats is how many times the final disconnect message is sent.
const disconnectRepeats = 3

// Client is the connecting side of the protocol. It performs the
// challenge handshake, keeps a channel to one server, sends usercmds and
// reliable commands every frame and decodes the server's messages.
//
// A Client is driven from one goroutine through Frame.
type Client struct {
	cfg       *Config
	transport netchan.Transport
	env       *netchan.Env
	tables    *gamestate.Tables
	logger    *slog.Logger
	parser    *Parser
	onCommand CommandHandler

	state     State
	server    netchan.Address
	challenge int32
	qport     uint16
	channel   *netchan.Channel
	userinfo  protocol.Info
	commands  *reliable.Log
	reason    string

	time           int32 // milliseconds since New
	lastResend     int32
	lastPacketTime int32
	pendingCmds    []gamestate.UserCmd
	lastPrint      string

	msg *bitstream.Message
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCommandHandler receives server commands such as print, and the
// final disconnect.
func WithCommandHandler(h CommandHandler) Option {
	return func(c *Client) {
		c.onCommand = h
	}
}

// New creates a disconnected client that talks over t.
func New(cfg *Config, t netchan.Transport, opts ...Option) (*Client, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		transport: t,
		logger:    slog.Default(),
		tables:    gamestate.NewTables(cfg.Priorities),
		commands:  reliable.New(protocol.MaxReliableCommands),
		msg:       bitstream.New(protocol.MaxMsgLen),
		qport:     cfg.QPort,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.qport == 0 {
		c.qport = uint16(rand.IntN(0xFFFF) + 1)
	}
	c.logger = c.logger.With("component", "client")
	c.env = cfg.Env.Clone()
	if c.env.Logger == nil {
		c.env.Logger = c.logger
	}
	c.parser = NewParser(c.tables, c.logger)
	c.parser.OnCommand = c.serverCommand
	return c, nil
}

// State returns the connection state.
func (c *Client) State() State {
	return c.state
}

// Parser returns the decoder holding configstrings and snapshots.
func (c *Client) Parser() *Parser {
	return c.parser
}

// Snapshot returns the newest valid snapshot.
func (c *Client) Snapshot() (*Snapshot, bool) {
	return c.parser.Snapshot()
}

// Configstring returns the configstring at index.
func (c *Client) Configstring(index int) string {
	return c.parser.Configstring(index)
}

// ClientNum returns the slot the server assigned, or -1.
func (c *Client) ClientNum() int {
	return c.parser.ClientNum()
}

// DisconnectReason returns why the last connection ended.
func (c *Client) DisconnectReason() string {
	return c.reason
}

// LastPrint returns the text of the last connectionless print.
func (c *Client) LastPrint() string {
	return c.lastPrint
}

// Channel returns the open channel, or nil.
func (c *Client) Channel() *netchan.Channel {
	return c.channel
}

// Connect starts the handshake with server.
func (c *Client) Connect(server netchan.Address) error {
	if c.state != StateDisconnected {
		return ErrAlreadyConnected
	}
	c.server = server
	c.reason = ""
	c.state = StateChallenging
	c.lastPacketTime = c.time
	c.logger.Info("connecting", "server", server.String())
	return c.sendChallenge()
}

func (c *Client) sendChallenge() error {
	c.lastResend = c.time
	return netchan.OutOfBandPrint(c.transport, c.server, "%s", protocol.OOBGetChallenge)
}

func (c *Client) sendConnect() error {
	c.lastResend = c.time
	c.userinfo = c.buildUserinfo()
	return netchan.OutOfBandPrint(c.transport, c.server, "%s %s", protocol.OOBConnect, protocol.Quote(c.userinfo.String()))
}

func (c *Client) buildUserinfo() protocol.Info {
	var info protocol.Info
	info.Set("name", c.cfg.Name)
	info.Set("rate", strconv.Itoa(c.cfg.Rate))
	info.Set("snaps", strconv.Itoa(c.cfg.Snaps))
	info.Set("protocol", strconv.Itoa(protocol.Version))
	info.Set("qport", strconv.Itoa(int(c.qport)))
	info.Set("challenge", strconv.Itoa(int(c.challenge)))
	return info
}

// SetUserinfo changes one userinfo key. A connected client sends the new
// userinfo to the server.
func (c *Client) SetUserinfo(key, value string) error {
	switch strings.ToLower(key) {
	case "name":
		c.cfg.Name = value
	case "rate":
		c.cfg.Rate, _ = strconv.Atoi(value)
	case "snaps":
		c.cfg.Snaps, _ = strconv.Atoi(value)
	}
	if err := c.userinfo.Set(key, value); err != nil {
		return err
	}
	if c.state < StateConnected {
		return nil
	}
	return c.AddReliableCommand("userinfo " + protocol.Quote(c.userinfo.String()))
}

// AddReliableCommand queues text for reliable delivery to the server.
func (c *Client) AddReliableCommand(text string) error {
	if c.state < StateConnected {
		return ErrNotConnected
	}
	if _, err := c.commands.Append(text); err != nil {
		c.disconnectLocal("too many pending client commands")
		return err
	}
	return nil
}

// AddUserCmd queues one frame of input for the next client message.
// Commands beyond gamestate.MaxPacketUsercmds replace the oldest.
func (c *Client) AddUserCmd(cmd gamestate.UserCmd) {
	if len(c.pendingCmds) == gamestate.MaxPacketUsercmds {
		c.pendingCmds = c.pendingCmds[1:]
	}
	c.pendingCmds = append(c.pendingCmds, cmd)
}

// Frame advances client time by msec, reads every waiting packet, repeats
// unanswered handshake requests and sends the frame's message.
func (c *Client) Frame(msec int) error {
	c.time += int32(msec)
	for {
		from, data, ok := c.transport.ReceivePacket()
		if !ok {
			break
		}
		if err := c.PacketEvent(from, data); err != nil {
			c.logger.Warn("packet failed", "error", err)
		}
	}

	if c.state != StateDisconnected && c.time-c.lastPacketTime > int32(c.cfg.Timeout/time.Millisecond) {
		c.disconnectLocal(protocol.ReasonTimedOut)
		return &DisconnectError{Reason: protocol.ReasonTimedOut}
	}

	resend := c.time-c.lastResend >= int32(c.cfg.ResendInterval/time.Millisecond)
	switch c.state {
	case StateChallenging:
		if resend {
			return c.sendChallenge()
		}
	case StateConnecting:
		if resend {
			return c.sendConnect()
		}
	case StateConnected, StatePrimed, StateActive:
		return c.sendMessage()
	}
	return nil
}

// PacketEvent handles one received datagram.
func (c *Client) PacketEvent(from netchan.Address, packet []byte) error {
	if protocol.IsOutOfBand(packet) {
		c.connectionless(from, packet[4:])
		return nil
	}
	if c.channel == nil || !from.EqualBase(c.server) {
		return nil
	}
	data, res := c.channel.Process(packet)
	if res != netchan.Delivered {
		return nil
	}
	c.lastPacketTime = c.time
	if err := c.parser.Parse(c.channel.IncomingSequence(), data); err != nil {
		c.disconnectLocal(protocol.ReasonIllegibleMessage)
		return err
	}
	if c.state == StateDisconnected {
		return nil
	}
	if err := c.commands.Acknowledge(c.parser.ReliableAck()); err != nil {
		c.disconnectLocal(protocol.ReasonIllegibleMessage)
		return err
	}

	if c.state == StateConnected && c.parser.HasGamestate() {
		c.state = StatePrimed
		c.logger.Debug("gamestate received", "client", c.parser.ClientNum(), "server_id", c.parser.ServerID())
	}
	if c.state == StatePrimed {
		if snap, ok := c.parser.Snapshot(); ok && !snap.Flags.Has(protocol.SnapFlagNotActive) {
			c.state = StateActive
			c.logger.Info("active", "client", c.parser.ClientNum())
		}
	}
	return nil
}

func (c *Client) connectionless(from netchan.Address, payload []byte) {
	text := string(payload)
	args := protocol.Tokenize(text)
	if len(args) == 0 || !from.EqualBase(c.server) {
		return
	}
	switch args[0] {
	case protocol.OOBChallengeResponse:
		if c.state != StateChallenging || len(args) < 2 {
			return
		}
		v, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return
		}
		c.challenge = int32(v)
		c.state = StateConnecting
		c.lastPacketTime = c.time
		if err := c.sendConnect(); err != nil {
			c.logger.Warn("connect send failed", "error", err)
		}
	case protocol.OOBConnectResponse:
		if c.state != StateConnecting {
			return
		}
		env := c.env.Clone()
		env.ScrambleKey ^= uint32(c.challenge)
		c.channel = netchan.New(env, netchan.ClientSide, c.transport, from, c.qport)
		c.commands.Reset(0)
		c.parser = NewParser(c.tables, c.logger)
		c.parser.OnCommand = c.serverCommand
		c.state = StateConnected
		c.lastPacketTime = c.time
		c.logger.Info("connected", "server", from.String())
	case protocol.OOBPrint:
		_, body, _ := strings.Cut(text, "\n")
		c.lastPrint = body
		c.logger.Info("server print", "text", strings.TrimSpace(body))
	case protocol.OOBDisconnect:
		if c.state >= StateConnected {
			c.disconnectLocal("server disconnected")
		}
	}
}

// serverCommand runs commands that affect the connection and forwards
// the rest.
func (c *Client) serverCommand(args []string) {
	if args[0] == "disconnect" {
		reason := "server disconnected"
		if len(args) > 1 {
			reason = args[1]
		}
		c.disconnectLocal(reason)
	}
	if c.onCommand != nil {
		c.onCommand(args)
	}
}

// sendMessage writes the frame's message: acknowledgements, unacknowledged
// client commands and, once primed, the queued usercmds.
func (c *Client) sendMessage() error {
	m := c.msg
	m.Reset()
	m.WriteInt32(c.parser.ServerID())
	m.WriteInt32(int32(c.channel.IncomingSequence()))
	m.WriteInt32(int32(c.parser.ServerCommandSequence()))

	for _, cmd := range c.commands.CommandsSince(c.commands.Acknowledged()) {
		m.WriteUint8(uint8(protocol.ClcClientCommand))
		m.WriteInt32(int32(cmd.Sequence))
		m.WriteString(cmd.Text)
	}

	if c.state >= StatePrimed {
		cmds := c.pendingCmds
		if len(cmds) == 0 {
			cmds = []gamestate.UserCmd{{ServerTime: c.serverTime()}}
		}
		op := protocol.ClcMove
		if _, ok := c.parser.Snapshot(); !ok {
			op = protocol.ClcMoveNoDelta
		}
		m.WriteUint8(uint8(op))
		m.WriteUint8(uint8(len(cmds)))
		var from *gamestate.UserCmd
		for i := range cmds {
			c.tables.WriteDeltaUsercmd(m, from, &cmds[i])
			from = &cmds[i]
		}
		c.pendingCmds = c.pendingCmds[:0]
	}
	m.WriteUint8(uint8(protocol.ClcEOF))
	if err := m.Err(); err != nil {
		return err
	}
	return c.channel.Transmit(m.Bytes())
}

// serverTime estimates the current server time from the newest snapshot.
func (c *Client) serverTime() int32 {
	if snap, ok := c.parser.Snapshot(); ok {
		return snap.ServerTime
	}
	return c.time
}

// Disconnect sends a disconnect command to the server and closes the
// connection.
func (c *Client) Disconnect() error {
	if c.state == StateDisconnected {
		return ErrNotConnected
	}
	var errs []error
	if c.state >= StateConnected {
		if err := c.AddReliableCommand("disconnect"); err != nil {
			errs = append(errs, err)
		}
		for range disconnectRepeats {
			if c.state == StateDisconnected {
				break
			}
			if err := c.sendMessage(); err != nil {
				errs = append(errs, err)
				break
			}
		}
	}
	c.disconnectLocal(protocol.ReasonClientQuit)
	return errors.Join(errs...)
}

func (c *Client) disconnectLocal(reason string) {
	if c.state == StateDisconnected {
		return
	}
	c.logger.Info("disconnected", "reason", reason)
	c.state = StateDisconnected
	c.reason = reason
	c.channel = nil
	c.pendingCmds = c.pendingCmds[:0]
}
