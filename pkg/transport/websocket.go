package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/netchan"
	"github.com/TheDushan/OpenWolf-Engine-sub001/pkg/protocol"
)

// ErrUnknownPeer is returned when sending to a WebSocket peer that is not
// connected.
var ErrUnknownPeer = errors.New("transport: unknown websocket peer")

// WebSocketOptions configures the WebSocket transports.
type WebSocketOptions struct {
	// ReadBufferSize and WriteBufferSize size the connection buffers.
	// Default: 4096
	ReadBufferSize  int
	WriteBufferSize int

	// CheckOrigin validates the Origin header of upgrade requests.
	// Default: nil (gorilla's same-origin check)
	CheckOrigin func(r *http.Request) bool

	// WriteTimeout bounds a single datagram write.
	// Default: 5s
	WriteTimeout time.Duration

	// Queue is the receive buffer in datagrams.
	// Default: UDPQueue
	Queue int

	// TrustedProxies lists reverse proxies whose Forwarded and
	// X-Forwarded-For headers name the real peer address.
	// Default: none
	TrustedProxies []netip.Prefix

	Logger *slog.Logger
}

func (o WebSocketOptions) withDefaults() WebSocketOptions {
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = 4096
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = 4096
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Queue <= 0 {
		o.Queue = UDPQueue
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type wsConn struct {
	conn         *websocket.Conn
	addr         netchan.Address
	mu           sync.Mutex
	writeTimeout time.Duration
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// readLoop forwards binary frames to packets until the connection fails.
func (c *wsConn) readLoop(packets chan<- datagram, overruns *atomic.Uint64, logger *slog.Logger) {
	c.conn.SetReadLimit(protocol.MaxPacketLen)
	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logger.Warn("read error", "peer", c.addr.String(), "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		select {
		case packets <- datagram{from: c.addr, data: msg}:
		default:
			overruns.Add(1)
		}
	}
}

// WebSocketServer accepts browser clients over WebSocket and exposes them
// as datagram peers. Each binary frame carries one packet.
type WebSocketServer struct {
	upgrader     websocket.Upgrader
	conns        *xsync.MapOf[string, *wsConn]
	packets      chan datagram
	nextID       atomic.Uint64
	overruns     atomic.Uint64
	closed       atomic.Bool
	writeTimeout time.Duration
	trusted      []netip.Prefix
	logger       *slog.Logger
}

// NewWebSocketServer creates a WebSocket transport. Mount it as an
// http.Handler on the upgrade path.
func NewWebSocketServer(opts WebSocketOptions) *WebSocketServer {
	opts = opts.withDefaults()
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     opts.CheckOrigin,
		},
		conns:        xsync.NewMapOf[string, *wsConn](),
		packets:      make(chan datagram, opts.Queue),
		writeTimeout: opts.WriteTimeout,
		trusted:      opts.TrustedProxies,
		logger:       opts.Logger.With("component", "websocket"),
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	id := strconv.FormatUint(s.nextID.Add(1), 36)
	remote := peerAddr(r, s.trusted)
	c := &wsConn{
		conn:         conn,
		addr:         netchan.WebSocketAddress(id, remote),
		writeTimeout: s.writeTimeout,
	}
	s.conns.Store(id, c)
	s.logger.Debug("peer connected", "peer", c.addr.String())

	defer func() {
		s.conns.Delete(id)
		conn.Close()
		s.logger.Debug("peer disconnected", "peer", c.addr.String())
	}()
	c.readLoop(s.packets, &s.overruns, s.logger)
}

// SendPacket writes data as one binary frame to a connected peer.
func (s *WebSocketServer) SendPacket(to netchan.Address, data []byte) error {
	if to.Kind != netchan.AddrWebSocket {
		return fmt.Errorf("%w: %s", ErrUnsupportedAddress, to.Kind)
	}
	c, ok := s.conns.Load(to.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, to.ID)
	}
	if err := c.write(data); err != nil {
		return fmt.Errorf("transport: websocket send: %w", err)
	}
	return nil
}

// ReceivePacket returns the next buffered packet without blocking.
func (s *WebSocketServer) ReceivePacket() (netchan.Address, []byte, bool) {
	select {
	case d := <-s.packets:
		return d.from, d.data, true
	default:
		return netchan.Address{}, nil, false
	}
}

// Peers returns the number of connected peers.
func (s *WebSocketServer) Peers() int {
	return s.conns.Size()
}

// Overruns returns how many packets were dropped on a full queue.
func (s *WebSocketServer) Overruns() uint64 {
	return s.overruns.Load()
}

// Close disconnects every peer and refuses new upgrades.
func (s *WebSocketServer) Close() error {
	s.closed.Store(true)
	s.conns.Range(func(id string, c *wsConn) bool {
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
		return true
	})
	return nil
}

// WebSocketClient is the client end of a WebSocket transport. It talks to
// exactly one server.
type WebSocketClient struct {
	c        *wsConn
	packets  chan datagram
	overruns atomic.Uint64
	done     chan struct{}
}

// DialWebSocket connects to a WebSocketServer at url (ws:// or wss://).
func DialWebSocket(ctx context.Context, url string, opts WebSocketOptions) (*WebSocketClient, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{
		ReadBufferSize:   opts.ReadBufferSize,
		WriteBufferSize:  opts.WriteBufferSize,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	remote, _ := netip.ParseAddrPort(conn.RemoteAddr().String())
	wc := &WebSocketClient{
		c: &wsConn{
			conn:         conn,
			addr:         netchan.WebSocketAddress("server", remote),
			writeTimeout: opts.WriteTimeout,
		},
		packets: make(chan datagram, opts.Queue),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(wc.done)
		wc.c.readLoop(wc.packets, &wc.overruns, opts.Logger.With("component", "websocket"))
	}()
	return wc, nil
}

// ServerAddress returns the address packets from the server arrive from.
func (w *WebSocketClient) ServerAddress() netchan.Address {
	return w.c.addr
}

// SendPacket writes data to the server. The destination is ignored.
func (w *WebSocketClient) SendPacket(_ netchan.Address, data []byte) error {
	if err := w.c.write(data); err != nil {
		return fmt.Errorf("transport: websocket send: %w", err)
	}
	return nil
}

// ReceivePacket returns the next buffered packet without blocking.
func (w *WebSocketClient) ReceivePacket() (netchan.Address, []byte, bool) {
	select {
	case d := <-w.packets:
		return d.from, d.data, true
	default:
		return netchan.Address{}, nil, false
	}
}

// Done is closed when the connection to the server is lost.
func (w *WebSocketClient) Done() <-chan struct{} {
	return w.done
}

// Close closes the connection.
func (w *WebSocketClient) Close() error {
	w.c.mu.Lock()
	w.c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.c.mu.Unlock()
	return w.c.conn.Close()
}
