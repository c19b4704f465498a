package core

import (
	"errors"
	"fmt"
)

// Messages sent to clients in error events.
const (
	MsgUnknownCommand  = "Unknown command"
	MsgServerFull      = "Server full"
	MsgMissingArgument = "Missing argument"
)

var (
	// ErrMalformedFrame marks an inbound frame that could not be decoded.
	// The frame is dropped and the session keeps reading.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrConnClosed is returned by Conn.Send once the connection's teardown started.
	ErrConnClosed = errors.New("connection closed")
	// ErrNotRegistered is returned for registry mutations on a removed or unknown connection.
	ErrNotRegistered = errors.New("connection not registered")
)

// ArgumentError reports a command that arrived without a required argument.
type ArgumentError struct {
	Command string
	Arg     string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: missing argument %q", e.Command, e.Arg)
}

// Reply is the text sent back to the client.
func (e *ArgumentError) Reply() string {
	return MsgMissingArgument + ": " + e.Arg
}
