package core

// Conn is one live transport connection as seen by the core layer.
//
// Send must be safe for concurrent use: the owning session and broadcasts
// started by other sessions write to the same connection. Once Close has been
// called, Send must return ErrConnClosed without touching the transport, and
// once Close has returned no Send may still be writing.
//
// SendFinal writes one last frame and, in the same critical section, makes
// every later Send return ErrConnClosed. The transport stays open until Close.
type Conn interface {
	ID() string
	RemoteAddr() string
	Send(frame []byte) error
	SendFinal(frame []byte) error
	Close() error
}

// Codec decodes commands from one connection and encodes events into frames.
//
// ReadCommand returns an error wrapping ErrMalformedFrame for frames that
// should be dropped, an *ArgumentError for a recognized command missing a
// required argument, and any other error when the stream is unusable.
type Codec interface {
	ReadCommand() (Command, error)
	EncodeEvent(ev Event) ([]byte, error)
}
