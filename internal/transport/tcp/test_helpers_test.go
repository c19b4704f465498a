package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
	"github.com/vovakirdan/chanchat/internal/store"
)

type testServer struct {
	addr   string
	reg    *core.Registry
	gate   *admission.Gate
	cancel context.CancelFunc
	done   chan error
}

func startTestServer(t *testing.T, maxSessions int, journal store.Store) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	cfg := config.Default()
	cfg.Addr = ln.Addr().String()
	cfg.MaxSessions = maxSessions
	cfg.WriteTimeout = time.Second

	reg := core.NewRegistry(nil)
	gate := admission.New(maxSessions)
	srv := NewServer(reg, gate, journal, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{
		addr:   ln.Addr().String(),
		reg:    reg,
		gate:   gate,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		ts.done <- srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.done:
		case <-time.After(3 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ts
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) send(command string, args any) {
	c.t.Helper()

	in, err := proto.NewCommand(command, args)
	if err != nil {
		c.t.Fatalf("build command: %v", err)
	}
	data, err := json.Marshal(in)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	c.sendRaw(string(data))
}

func (c *testClient) sendRaw(line string) {
	c.t.Helper()

	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) read() (proto.EventEnvelope, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return proto.EventEnvelope{}, err
	}
	return proto.DecodeEvent(line)
}

// expect reads the next event and checks its name, decoding args into dst if non-nil.
func (c *testClient) expect(event string, dst any) {
	c.t.Helper()

	env, err := c.read()
	if err != nil {
		c.t.Fatalf("read %s: %v", event, err)
	}
	if env.Event != event {
		c.t.Fatalf("expected %s event, got %s (%s)", event, env.Event, env.Args)
	}
	if dst != nil {
		if err := env.Decode(dst); err != nil {
			c.t.Fatalf("decode %s: %v", event, err)
		}
	}
}

// expectSilence checks that nothing arrives for a short while.
func (c *testClient) expectSilence() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	line, err := c.r.ReadBytes('\n')
	if err == nil {
		c.t.Fatalf("unexpected frame: %s", line)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		c.t.Fatalf("expected timeout, got %v", err)
	}
}

func strPtr(s string) *string { return &s }

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
