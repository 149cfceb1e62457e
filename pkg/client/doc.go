// Package client implements the connecting side of the protocol.
//
// A Client walks the handshake (challenge, connect, gamestate), then
// exchanges sequenced messages with the server every frame: reliable
// commands and user moves go up, snapshots and server commands come back
// down. Parser decodes server messages on its own, so recorded demos can be
// read without a connection:
//
//	p := client.NewParser(nil, logger)
//	for {
//		seq, data, err := demoReader.Next()
//		if err != nil {
//			break
//		}
//		if err := p.Parse(seq, data); err != nil {
//			return err
//		}
//	}
//
// Like the server, a Client is driven from one goroutine by calling Frame.
package client
