package client

import "errors"

// Sentinel errors returned by the client.
var (
	// ErrIllegibleMessage is returned when a server message cannot be parsed.
	ErrIllegibleMessage = errors.New("client: illegible server message")

	// ErrNotConnected is returned for operations that need a connection.
	ErrNotConnected = errors.New("client: not connected")

	// ErrAlreadyConnected is returned by Connect while a connection is in
	// progress or established.
	ErrAlreadyConnected = errors.New("client: already connected")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("client: invalid config")
)

// DisconnectError reports why the connection ended.
type DisconnectError struct {
	Reason string
}

// Error returns the disconnect reason.
func (e *DisconnectError) Error() string {
	return "client: disconnected: " + e.Reason
}
