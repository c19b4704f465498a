package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/vovakirdan/chanchat/internal/proto"
)

const defaultPort = 5002

const (
	colorReset   = "\033[0m"
	colorGreen   = "\033[92m"
	colorYellow  = "\033[93m"
	colorCyan    = "\033[96m"
	colorMagenta = "\033[95m"
)

const usage = `Commands:
  /connect <host> [port]
  /nick <name>
  /join <channel>
  /leave [channel]
  /list
  /quit
Anything else is sent as a message to your current channel(s).`

func main() {
	if err := run(); err != nil {
		log.Printf("chat: %v", err)
		os.Exit(1)
	}
}

// chatClient holds at most one server connection at a time.
type chatClient struct {
	mu   sync.Mutex
	conn net.Conn
	done chan struct{}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &chatClient{}
	defer c.disconnect()

	fmt.Println("=== chanchat client ===")
	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nExiting...")
			c.send(proto.CommandQuit, nil)
			return nil
		case line, ok := <-lines:
			if !ok {
				c.send(proto.CommandQuit, nil)
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "/") {
				c.send(proto.CommandMessage, proto.TextArgs{Text: &line})
				continue
			}
			if quit := c.handleCommand(line); quit {
				c.waitGoodbye()
				return nil
			}
		}
	}
}

// handleCommand runs one slash command and reports whether the client should exit.
func (c *chatClient) handleCommand(line string) bool {
	parts := strings.Fields(line)
	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "/"))

	switch cmd {
	case "connect":
		if len(parts) < 2 {
			fmt.Println("Usage: /connect <host> [port]")
			return false
		}
		port := defaultPort
		if len(parts) >= 3 {
			p, err := strconv.Atoi(parts[2])
			if err != nil {
				fmt.Println("Usage: /connect <host> [port]")
				return false
			}
			port = p
		}
		c.connect(parts[1], port)
	case "nick":
		if len(parts) < 2 {
			fmt.Println("Usage: /nick <name>")
			return false
		}
		c.send(proto.CommandNick, proto.NickArgs{Nickname: &parts[1]})
	case "join":
		if len(parts) < 2 {
			fmt.Println("Usage: /join <channel>")
			return false
		}
		c.send(proto.CommandJoin, proto.ChannelArgs{Channel: &parts[1]})
	case "leave":
		if len(parts) >= 2 {
			c.send(proto.CommandLeave, proto.ChannelArgs{Channel: &parts[1]})
		} else {
			c.send(proto.CommandLeave, nil)
		}
	case "list":
		c.send(proto.CommandList, nil)
	case "quit":
		c.send(proto.CommandQuit, nil)
		return true
	case "help":
		fmt.Println(usage)
	default:
		fmt.Printf("Unknown command: %s. Try /help.\n", cmd)
	}
	return false
}

func (c *chatClient) connect(host string, port int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		fmt.Println("Already connected. Use /quit to disconnect first.")
		return
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		fmt.Printf("Could not connect: %v\n", err)
		return
	}
	fmt.Printf("Connected to %s.\n", addr)

	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)
}

func (c *chatClient) send(command string, args any) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		if command != proto.CommandQuit {
			fmt.Println("Not connected. Use /connect <host> [port].")
		}
		return
	}

	in, err := proto.NewCommand(command, args)
	if err != nil {
		log.Printf("build %s: %v", command, err)
		return
	}
	data, err := json.Marshal(in)
	if err != nil {
		log.Printf("marshal %s: %v", command, err)
		return
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		fmt.Printf("Error sending command: %v\n", err)
		c.disconnect()
	}
}

// waitGoodbye gives the server a moment to answer quit before the socket closes.
func (c *chatClient) waitGoodbye() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func (c *chatClient) disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		fmt.Println("Disconnected.")
	}
}

func (c *chatClient) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println(colorize("Disconnected from server.", colorYellow))
			} else if !errors.Is(err, net.ErrClosed) {
				log.Printf("read error: %v", err)
			}
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				_ = conn.Close()
			}
			c.mu.Unlock()
			return
		}

		env, err := proto.DecodeEvent(line)
		if err != nil {
			log.Printf("decode: %v", err)
			continue
		}
		display(env)
	}
}

func display(env proto.EventEnvelope) {
	switch env.Event {
	case proto.EventMessage:
		var msg proto.MessageData
		if err := env.Decode(&msg); err == nil {
			fmt.Println(colorize(fmt.Sprintf("[%s] %s: %s", msg.Channel, msg.FromUser, msg.Text), colorGreen))
			return
		}
	case proto.EventJoined, proto.EventLeft:
		var data proto.ChannelData
		if err := env.Decode(&data); err == nil {
			verb := "Joined"
			if env.Event == proto.EventLeft {
				verb = "Left"
			}
			fmt.Println(colorize(fmt.Sprintf("%s %s", verb, data.Channel), colorCyan))
			return
		}
	case proto.EventList:
		var data proto.ListData
		if err := env.Decode(&data); err == nil {
			fmt.Println(colorize(fmt.Sprintf("Channels: %v", data.Channels), colorMagenta))
			return
		}
	case proto.EventNickSet:
		var data proto.NickSetData
		if err := env.Decode(&data); err == nil {
			fmt.Println(colorize("Nickname set to "+data.Nickname, colorCyan))
			return
		}
	case proto.EventGoodbye:
		fmt.Println(colorize("Server closed connection.", colorYellow))
		return
	case proto.EventError:
		var data proto.ErrorData
		if err := env.Decode(&data); err == nil {
			fmt.Println(colorize("Error: "+data.Message, colorYellow))
			return
		}
	}
	fmt.Printf("event=%s args=%s\n", env.Event, env.Args)
}

func colorize(text, code string) string {
	return code + text + colorReset
}
