package core

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn records every frame sent to it as a decoded Event.
type fakeConn struct {
	id     string
	events chan Event
	done   chan struct{}

	// afterSend, when set, runs after each delivered frame outside the lock.
	afterSend func(Event)

	mu           sync.Mutex
	closed       bool
	sealed       bool
	sends        int
	sendsAtClose int
	failSend     atomic.Bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:     id,
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) RemoteAddr() string { return "pipe:" + c.id }

func (c *fakeConn) Send(frame []byte) error {
	return c.send(frame, false)
}

func (c *fakeConn) SendFinal(frame []byte) error {
	return c.send(frame, true)
}

func (c *fakeConn) send(frame []byte, final bool) error {
	c.mu.Lock()
	if c.closed || c.sealed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	if c.failSend.Load() {
		c.mu.Unlock()
		return errors.New("broken pipe")
	}
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		c.mu.Unlock()
		return err
	}
	c.sends++
	c.sealed = final
	c.events <- ev
	hook := c.afterSend
	c.mu.Unlock()

	if hook != nil {
		hook(ev)
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		c.sendsAtClose = c.sends
		close(c.done)
	}
	return nil
}

func (c *fakeConn) setAfterSend(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterSend = fn
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// sendCounts reports frames delivered in total and before Close.
func (c *fakeConn) sendCounts() (total, atClose int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends, c.sendsAtClose
}

type readResult struct {
	cmd Command
	err error
}

// fakeCodec feeds queued commands to a session and encodes events as plain JSON.
type fakeCodec struct {
	conn  *fakeConn
	input chan readResult
}

func newFakeCodec(conn *fakeConn) *fakeCodec {
	return &fakeCodec{conn: conn, input: make(chan readResult, 64)}
}

func (c *fakeCodec) ReadCommand() (Command, error) {
	select {
	case r, ok := <-c.input:
		if !ok {
			return Command{}, io.EOF
		}
		return r.cmd, r.err
	case <-c.conn.done:
		return Command{}, ErrConnClosed
	}
}

func (c *fakeCodec) EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

func (c *fakeCodec) send(cmd Command) {
	c.input <- readResult{cmd: cmd}
}

func (c *fakeCodec) fail(err error) {
	c.input <- readResult{err: err}
}

// testClient is a running session plus its fake transport.
type testClient struct {
	conn    *fakeConn
	codec   *fakeCodec
	session *Session
	summary chan Summary
}

func startClient(t *testing.T, reg *Registry, id string) *testClient {
	t.Helper()

	conn := newFakeConn(id)
	codec := newFakeCodec(conn)
	c := &testClient{
		conn:    conn,
		codec:   codec,
		session: NewSession(reg, conn, codec, nil),
		summary: make(chan Summary, 1),
	}
	go func() {
		c.summary <- c.session.Run()
	}()
	t.Cleanup(func() { c.session.Close(ReasonShutdown) })
	return c
}

func (c *testClient) waitClosed(t *testing.T) Summary {
	t.Helper()

	select {
	case s := <-c.summary:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not close", c.conn.id)
		return Summary{}
	}
}

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return Event{}
}

// expectNoEvent fails if any event shows up within a short window.
func expectNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
