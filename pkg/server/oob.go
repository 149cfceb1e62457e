package server

import (
	"crypto/subtle"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/gamestate"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// maxChallenges bounds the pending challenge table.
const maxChallenges = 1024

type challenge struct {
	value int32
	time  int32
}

// OOBHandler handles one connectionless command. args[0] is the command
// name.
type OOBHandler func(s *Server, from netchan.Address, args []string)

// Commands dispatches connectionless packets by their first word.
type Commands struct {
	handlers map[string]OOBHandler
}

func newCommands() *Commands {
	c := &Commands{handlers: make(map[string]OOBHandler)}
	c.Register(protocol.OOBGetChallenge, handleGetChallenge)
	c.Register(protocol.OOBConnect, handleConnect)
	c.Register(protocol.OOBGetStatus, handleGetStatus)
	c.Register(protocol.OOBGetInfo, handleGetInfo)
	c.Register(protocol.OOBRcon, handleRcon)
	return c
}

// Register adds or replaces the handler for name. Names are case
// insensitive.
func (c *Commands) Register(name string, h OOBHandler) {
	c.handlers[strings.ToLower(name)] = h
}

// Names returns the registered command names, sorted.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for payload, the packet text after the
// out-of-band marker. It reports whether a handler ran.
func (c *Commands) Dispatch(s *Server, from netchan.Address, payload []byte) bool {
	args := protocol.Tokenize(string(payload))
	if len(args) == 0 {
		return false
	}
	h, ok := c.handlers[strings.ToLower(args[0])]
	if !ok {
		s.logger.Debug("unknown connectionless command", "from", from.String(), "command", args[0])
		return false
	}
	h(s, from, args)
	return true
}

// print sends a connectionless print to addr.
func (s *Server) print(to netchan.Address, format string, args ...any) {
	netchan.OutOfBandPrint(s.transport, to, "%s\n%s", protocol.OOBPrint, fmt.Sprintf(format, args...))
}

func handleGetChallenge(s *Server, from netchan.Address, _ []string) {
	key := from.String()
	ch, ok := s.challenges[key]
	if !ok {
		if len(s.challenges) >= maxChallenges {
			s.evictOldestChallenge()
		}
		ch = challenge{value: rand.Int32N(math.MaxInt32-1) + 1, time: s.time}
		s.challenges[key] = ch
	}
	netchan.OutOfBandPrint(s.transport, from, "%s %d", protocol.OOBChallengeResponse, ch.value)
}

func (s *Server) evictOldestChallenge() {
	var oldestKey string
	var oldest int32 = math.MaxInt32
	for k, ch := range s.challenges {
		if ch.time < oldest {
			oldest, oldestKey = ch.time, k
		}
	}
	delete(s.challenges, oldestKey)
}

// handleConnect admits a client: connect "<userinfo>". The userinfo must
// carry the protocol version, the challenge handed out for this address
// and the client's qport.
func handleConnect(s *Server, from netchan.Address, args []string) {
	if len(args) < 2 {
		s.print(from, "%s", protocol.ReasonRejected)
		return
	}
	info := protocol.ParseInfo(args[1])
	if info.ValueForKey("protocol") != strconv.Itoa(protocol.Version) {
		s.print(from, "%s (%d)", protocol.ReasonBadVersion, protocol.Version)
		return
	}
	qport, err := strconv.ParseUint(info.ValueForKey("qport"), 10, 16)
	if err != nil {
		s.print(from, "%s", protocol.ReasonRejected)
		return
	}
	chValue, _ := strconv.ParseInt(info.ValueForKey("challenge"), 10, 32)
	if from.Kind != netchan.AddrLoopback {
		ch, ok := s.challenges[from.String()]
		if !ok || ch.value != int32(chValue) {
			s.logger.Info("connect rejected", "from", from.String(), "reason", protocol.ReasonBadChallenge)
			s.print(from, "%s", protocol.ReasonBadChallenge)
			return
		}
	}

	// A reconnect from the same address and qport reuses its slot.
	var c *Client
	reconnect := false
	for _, cl := range s.clients {
		if cl.State != StateFree && cl.Channel != nil &&
			cl.Address().EqualBase(from) && cl.Channel.QPort() == uint16(qport) {
			c = cl
			reconnect = cl.State >= StateConnected
			break
		}
	}
	if c == nil {
		for _, cl := range s.clients {
			if cl.State == StateFree {
				c = cl
				break
			}
		}
	}
	if c == nil {
		s.print(from, "%s", protocol.ReasonServerFull)
		return
	}

	if reconnect {
		c.logger.Info("client reconnecting", "from", from.String())
		if s.game != nil {
			s.game.ClientDisconnect(c.Num)
		}
		if c.recording != nil {
			s.finishRecording(c)
		}
	}
	if s.game != nil {
		if err := s.game.ClientConnect(c.Num, info); err != nil {
			if reconnect {
				c.State = StateZombie
				c.LastPacketTime = s.time
				s.metrics.ClientDropped(protocol.ReasonRejected)
			}
			s.print(from, "%s: %v", protocol.ReasonRejected, err)
			return
		}
	}

	env := s.env.Clone()
	env.ScrambleKey ^= uint32(chValue)
	c.Channel = netchan.New(env, netchan.ServerSide, s.transport, from, uint16(qport))
	c.State = StateConnected
	c.Userinfo = info
	c.applyUserinfo(s.cfg)
	c.challenge = int32(chValue)
	c.LastClientCommand = 0
	c.MessageAcknowledge = 0
	c.GamestateMessageNum = 0
	c.DeltaMessage = -1
	c.NextSnapshotTime = s.time
	c.RateDelayed = false
	c.rateBound = false
	c.LastPacketTime = s.time
	c.Ping = 0
	c.lastUsercmd = gamestate.UserCmd{}
	c.commands.Reset(0)
	c.frames.Clear()
	delete(s.challenges, from.String())

	if !reconnect {
		s.metrics.ClientConnected()
	}
	c.logger.Info("client connected", "name", c.Name, "from", from.String(), "rate", c.Rate)
	netchan.OutOfBandPrint(s.transport, from, "%s", protocol.OOBConnectResponse)
}

func handleGetStatus(s *Server, from netchan.Address, _ []string) {
	var b strings.Builder
	b.WriteString(protocol.OOBStatusResponse)
	b.WriteByte('\n')
	b.WriteString(s.Configstring(CSServerInfo))
	b.WriteByte('\n')
	for _, c := range s.clients {
		if c.State < StateConnected {
			continue
		}
		fmt.Fprintf(&b, "%d %d %s\n", c.Num, c.Ping, protocol.Quote(c.Name))
	}
	netchan.OutOfBandPrint(s.transport, from, "%s", b.String())
}

func handleGetInfo(s *Server, from netchan.Address, args []string) {
	info := s.serverInfo()
	info.Set("clients", strconv.Itoa(s.ActiveClients()))
	if len(args) > 1 {
		info.Set("challenge", args[1])
	}
	netchan.OutOfBandPrint(s.transport, from, "%s\n%s", protocol.OOBInfoResponse, info.String())
}

// handleRcon runs a remote console command: rcon <password> <command...>.
func handleRcon(s *Server, from netchan.Address, args []string) {
	if s.cfg.RconPassword == "" {
		s.print(from, "No rcon password set on the server.")
		return
	}
	if len(args) < 2 || subtle.ConstantTimeCompare([]byte(args[1]), []byte(s.cfg.RconPassword)) != 1 {
		s.logger.Warn("bad rcon password", "from", from.String())
		s.print(from, "Bad rcon password.")
		return
	}
	s.logger.Info("rcon", "from", from.String(), "command", strings.Join(args[2:], " "))
	s.print(from, "%s", s.rcon(args[2:]))
}

// rcon executes a console command and returns its output.
func (s *Server) rcon(args []string) string {
	if len(args) == 0 {
		return "usage: rcon <password> <status|kick|say> [args]"
	}
	switch strings.ToLower(args[0]) {
	case "status":
		var b strings.Builder
		fmt.Fprintf(&b, "hostname: %s\nclients: %d/%d\n", s.cfg.Hostname, s.ActiveClients(), s.cfg.MaxClients)
		for _, c := range s.clients {
			if c.State < StateConnected {
				continue
			}
			fmt.Fprintf(&b, "%2d %-9s %4d %-16s %s\n", c.Num, c.State, c.Ping, c.Name, c.Address())
		}
		return b.String()
	case "kick":
		if len(args) < 2 {
			return "usage: kick <num|name>"
		}
		c := s.findClient(args[1])
		if c == nil {
			return "no such client: " + args[1]
		}
		s.DropClient(c, protocol.ReasonKicked)
		return "kicked " + c.Name
	case "say":
		text := strings.Join(args[1:], " ")
		s.AddServerCommand(nil, "print "+protocol.Quote("server: "+text))
		return "said: " + text
	default:
		return "unknown command: " + args[0]
	}
}

// findClient looks a connected client up by slot number or name.
func (s *Server) findClient(key string) *Client {
	if n, err := strconv.Atoi(key); err == nil {
		if c := s.Client(n); c != nil && c.State >= StateConnected {
			return c
		}
		return nil
	}
	for _, c := range s.clients {
		if c.State >= StateConnected && strings.EqualFold(c.Name, key) {
			return c
		}
	}
	return nil
}
