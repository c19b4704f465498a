package tcp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
)

// Conn adapts a net.Conn to core.Conn. Frames written by the owning session
// and by broadcasts from other sessions are serialized by one mutex.
type Conn struct {
	id           string
	raw          net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu     sync.Mutex
	buf    []byte
	sealed bool
	closed atomic.Bool
}

func newConn(id string, raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		id:           id,
		raw:          raw,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// Send writes one newline-terminated frame. A failed write closes the
// connection, so a partly written frame is never followed by another one.
func (c *Conn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(frame)
}

// SendFinal writes frame and refuses every later Send.
func (c *Conn) SendFinal(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.writeLocked(frame)
	c.sealed = true
	return err
}

func (c *Conn) writeLocked(frame []byte) error {
	if c.sealed || c.closed.Load() {
		return core.ErrConnClosed
	}
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	c.buf = proto.AppendFrame(c.buf[:0], frame)
	if _, err := c.raw.Write(c.buf); err != nil {
		if c.closed.CompareAndSwap(false, true) {
			_ = c.raw.Close()
		}
		return err
	}
	return nil
}

// Read implements io.Reader for the stream codec, applying the idle timeout.
func (c *Conn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.raw.Read(p)
}

// Close marks the connection closed and closes the socket. A write already in
// progress fails and Close waits for it; later sends return core.ErrConnClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.raw.Close()
	c.mu.Lock()
	c.mu.Unlock() //nolint:staticcheck // waits out an in-flight write
	return err
}
