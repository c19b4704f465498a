package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
	"github.com/vovakirdan/chanchat/internal/store"
)

type testEnv struct {
	ts    *httptest.Server
	srv   *Server
	reg   *core.Registry
	gate  *admission.Gate
	wsURL string
}

func startTestServer(t *testing.T, maxSessions int, journal store.Store) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.StatusAddr = "127.0.0.1:0"
	cfg.MaxSessions = maxSessions
	cfg.WriteTimeout = time.Second

	reg := core.NewRegistry(nil)
	gate := admission.New(maxSessions)
	srv := NewServer(reg, gate, journal, cfg, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	return &testEnv{
		ts:    ts,
		srv:   srv,
		reg:   reg,
		gate:  gate,
		wsURL: strings.Replace(ts.URL, "http", "ws", 1) + "/ws",
	}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, url string) *wsClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(command string, args any) {
	c.t.Helper()

	in, err := proto.NewCommand(command, args)
	if err != nil {
		c.t.Fatalf("build command: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, in); err != nil {
		c.t.Fatalf("write %s: %v", command, err)
	}
}

func (c *wsClient) sendRaw(typ websocket.MessageType, data string) {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, typ, []byte(data)); err != nil {
		c.t.Fatalf("write raw: %v", err)
	}
}

func (c *wsClient) read(timeout time.Duration) (proto.EventEnvelope, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return proto.EventEnvelope{}, err
	}
	return proto.DecodeEvent(data)
}

func (c *wsClient) expect(event string, dst any) {
	c.t.Helper()

	env, err := c.read(2 * time.Second)
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
