package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/chanchat/internal/proto"
)

// client is the minimal surface the smoke run needs from either transport.
type client interface {
	send(command string, args any) error
	recv() (proto.EventEnvelope, error)
	close()
}

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:5002", "TCP chat address")
	wsAddr := flag.String("ws", "", "WebSocket address (e.g. ws://localhost:8080/ws); overrides -addr")
	nick := flag.String("nick", "tester", "nickname to set")
	channel := flag.String("channel", "general", "channel to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		c   client
		err error
	)
	if *wsAddr != "" {
		c, err = dialWS(ctx, *wsAddr)
	} else {
		c, err = dialTCP(ctx, *addr)
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.close()

	steps := []struct {
		command string
		args    any
	}{
		{proto.CommandNick, proto.NickArgs{Nickname: nick}},
		{proto.CommandJoin, proto.ChannelArgs{Channel: channel}},
		{proto.CommandMessage, proto.TextArgs{Text: text}},
	}
	for _, step := range steps {
		if err := c.send(step.command, step.args); err != nil {
			return fmt.Errorf("send %s: %w", step.command, err)
		}
	}

	for {
		env, err := c.recv()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received event=%s args=%s\n", env.Event, env.Args)

		switch env.Event {
		case proto.EventMessage:
			var msg proto.MessageData
			if err := env.Decode(&msg); err != nil {
				return err
			}
			fmt.Printf("Message: channel=%s from=%s text=%q\n", msg.Channel, msg.FromUser, msg.Text)
			if err := c.send(proto.CommandQuit, nil); err != nil {
				return fmt.Errorf("send quit: %w", err)
			}
		case proto.EventError:
			var data proto.ErrorData
			if err := env.Decode(&data); err == nil {
				return fmt.Errorf("server error: %s", data.Message)
			}
		case proto.EventGoodbye:
			return nil
		default:
			// keep looping for message
		}
	}
}

type tcpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialTCP(ctx context.Context, addr string) (*tcpClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return &tcpClient{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (c *tcpClient) send(command string, args any) error {
	in, err := proto.NewCommand(command, args)
	if err != nil {
		return err
	}
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *tcpClient) recv() (proto.EventEnvelope, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return proto.EventEnvelope{}, err
	}
	return proto.DecodeEvent(line)
}

func (c *tcpClient) close() {
	_ = c.conn.Close()
}

type wsClient struct {
	ctx  context.Context
	conn *websocket.Conn
}

func dialWS(ctx context.Context, addr string) (*wsClient, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return &wsClient{ctx: ctx, conn: conn}, nil
}

func (c *wsClient) send(command string, args any) error {
	in, err := proto.NewCommand(command, args)
	if err != nil {
		return err
	}
	return wsjson.Write(c.ctx, c.conn, in)
}

func (c *wsClient) recv() (proto.EventEnvelope, error) {
	var env proto.EventEnvelope
	if err := wsjson.Read(c.ctx, c.conn, &env); err != nil {
		return proto.EventEnvelope{}, err
	}
	return env, nil
}

func (c *wsClient) close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
}
