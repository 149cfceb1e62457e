// Package transport provides the datagram transports a netchan.Channel
// sends through.
//
//   - Loopback connects a server and a client in the same process.
//   - UDP serves native clients over a UDP socket.
//   - WebSocketServer and WebSocketClient carry one packet per binary frame
//     for browser clients.
//   - Delayed wraps any transport to simulate latency, jitter and loss.
//   - Mux combines transports and routes sends by address kind.
//
// Every ReceivePacket is non-blocking. Socket readers run in their own
// goroutines and hand packets over through bounded queues.
package transport
