package server

import (
	"errors"
	"fmt"
)

// Sentinel errors for common client and server error conditions.
var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("server: invalid config")

	// ErrNotConnected is returned for operations on a free or zombie slot.
	ErrNotConnected = errors.New("server: client not connected")

	// ErrIllegibleMessage is returned when a client message cannot be parsed.
	ErrIllegibleMessage = errors.New("server: illegible client message")

	// ErrBadConfigstring is returned for a configstring index out of range.
	ErrBadConfigstring = errors.New("server: configstring index out of range")

	// ErrRecording is returned when a demo is already being recorded.
	ErrRecording = errors.New("server: already recording")

	// ErrNotRecording is returned by StopRecording without a recording.
	ErrNotRecording = errors.New("server: not recording")
)

// ClientError wraps an error with client context for debugging.
type ClientError struct {
	ClientNum int
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with client context.
func (e *ClientError) Error() string {
	return fmt.Sprintf("server: client %d: %s: %v", e.ClientNum, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ClientError) Unwrap() error {
	return e.Err
}

// DropError reports that a client was dropped. Reason is the text sent to
// the client with its final disconnect command.
type DropError struct {
	Reason string
}

// Error returns the drop reason.
func (e *DropError) Error() string {
	return "dropped: " + e.Reason
}

// IsDropped reports whether err records a client drop.
func IsDropped(err error) bool {
	var de *DropError
	return errors.As(err, &de)
}
