package http

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
)

func TestWebSocketListRoundTrip(t *testing.T) {
	env := startTestServer(t, 4, nil)
	c := dialWS(t, env.wsURL)

	var list proto.ListData
	c.send(proto.CommandList, nil)
	c.expect(proto.EventList, &list)
	if len(list.Channels) != 0 {
		t.Fatalf("expected no channels, got %v", list.Channels)
	}
	waitFor(t, func() bool { return env.reg.Sessions() == 1 }, "ws session registration")
}

func TestWebSocketJoinAndMessage(t *testing.T) {
	env := startTestServer(t, 4, nil)
	a := dialWS(t, env.wsURL)
	b := dialWS(t, env.wsURL)

	a.send(proto.CommandNick, proto.NickArgs{Nickname: strPtr("alice")})
	a.expect(proto.EventNickSet, nil)

	a.send(proto.CommandJoin, proto.ChannelArgs{Channel: strPtr("general")})
	a.expect(proto.EventJoined, nil)
	b.send(proto.CommandJoin, proto.ChannelArgs{Channel: strPtr("general")})
	a.expect(proto.EventJoined, nil)
	b.expect(proto.EventJoined, nil)

	a.send(proto.CommandMessage, proto.TextArgs{Text: strPtr("hello")})
	for _, c := range []*wsClient{a, b} {
		var msg proto.MessageData
		c.expect(proto.EventMessage, &msg)
		want := proto.MessageData{Channel: "general", FromUser: "alice", Text: "hello"}
		if msg != want {
			t.Fatalf("got %+v, want %+v", msg, want)
		}
	}
}

func TestWebSocketServerFull(t *testing.T) {
	env := startTestServer(t, 1, nil)
	first := dialWS(t, env.wsURL)
	first.send(proto.CommandList, nil)
	first.expect(proto.EventList, nil)

	second := dialWS(t, env.wsURL)
	var errData proto.ErrorData
	second.expect(proto.EventError, &errData)
	if errData.Message != core.MsgServerFull {
		t.Fatalf("unexpected error message %q", errData.Message)
	}
	_, err := second.read(2 * time.Second)
	if status := websocket.CloseStatus(err); status != websocket.StatusTryAgainLater {
		t.Fatalf("expected try-again-later close, got %v (%v)", status, err)
	}
	if env.gate.Active() != 1 {
		t.Fatalf("expected one admitted session, got %d", env.gate.Active())
	}
}

func TestWebSocketDropsMalformedFrames(t *testing.T) {
	env := startTestServer(t, 4, nil)
	c := dialWS(t, env.wsURL)

	c.sendRaw(websocket.MessageText, `{"type":"event","event":"joined"}`)
	c.sendRaw(websocket.MessageText, `not json`)
	c.sendRaw(websocket.MessageBinary, `{"type":"command","command":"list"}`)

	c.sendRaw(websocket.MessageText, `{"type":"command","command":"message","args":{}}`)
	var errData proto.ErrorData
	c.expect(proto.EventError, &errData)
	if errData.Message != "Missing argument: text" {
		t.Fatalf("unexpected error %q", errData.Message)
	}
}

func TestWebSocketQuit(t *testing.T) {
	env := startTestServer(t, 4, nil)
	c := dialWS(t, env.wsURL)

	c.send(proto.CommandJoin, proto.ChannelArgs{Channel: strPtr("room")})
	c.expect(proto.EventJoined, nil)
	c.send(proto.CommandQuit, nil)
	c.expect(proto.EventGoodbye, nil)

	_, err := c.read(2 * time.Second)
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v (%v)", status, err)
	}
	waitFor(t, func() bool { return env.reg.Sessions() == 0 }, "registry purge")
	if len(env.reg.Channels()) != 0 {
		t.Fatalf("expected empty channel to be pruned, got %v", env.reg.Channels())
	}
}

func TestShutdownClosesWebSocketSessions(t *testing.T) {
	env := startTestServer(t, 4, nil)
	c := dialWS(t, env.wsURL)
	c.send(proto.CommandList, nil)
	c.expect(proto.EventList, nil)

	readErr := make(chan error, 1)
	go func() {
		_, err := c.read(3 * time.Second)
		readErr <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	if err := <-readErr; err == nil {
		t.Fatalf("expected connection to be closed")
	}
	if env.reg.Sessions() != 0 {
		t.Fatalf("expected registry purge after shutdown, got %d sessions", env.reg.Sessions())
	}
}
