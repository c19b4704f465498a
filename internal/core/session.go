package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SessionState is the lifecycle stage of a session.
type SessionState int32

const (
	// StateActive means the session is reading and dispatching commands.
	StateActive SessionState = iota
	// StateClosing means the read loop is finishing; no further commands run.
	StateClosing
	// StateClosed means the registry entry is purged and the transport closed.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Close reasons recorded in session summaries.
const (
	ReasonQuit       = "quit"
	ReasonEOF        = "eof"
	ReasonTimeout    = "idle timeout"
	ReasonShutdown   = "shutdown"
	ReasonWriteError = "write error"
	ReasonReadError  = "read error"
)

// Summary describes a finished session.
type Summary struct {
	ID         string
	RemoteAddr string
	Nickname   string
	Commands   int
	Reason     string
	Channels   []string // channels the connection was in at teardown
	StartedAt  time.Time
	EndedAt    time.Time
}

// Session processes one connection's commands against the shared registry.
type Session struct {
	conn  Conn
	codec Codec
	reg   *Registry
	log   zerolog.Logger

	state     atomic.Int32
	reasonMu  sync.Mutex
	reason    string
	commands  int
	startedAt time.Time
}

// NewSession registers conn with the registry and returns an active session.
func NewSession(reg *Registry, conn Conn, codec Codec, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	reg.Register(conn)
	return &Session{
		conn:  conn,
		codec: codec,
		reg:   reg,
		log: logger.With().
			Str("session_id", conn.ID()).
			Str("remote_addr", conn.RemoteAddr()).
			Logger(),
		startedAt: time.Now(),
	}
}

// ID returns the connection identity.
func (s *Session) ID() string {
	return s.conn.ID()
}

// State reports the current lifecycle stage.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Run reads and dispatches commands until the session leaves the active
// state, then tears it down. It must be called exactly once.
func (s *Session) Run() Summary {
	s.log.Info().Msg("session started")

	for s.State() == StateActive {
		cmd, err := s.codec.ReadCommand()
		if err != nil {
			s.handleReadError(err)
			continue
		}
		if s.State() != StateActive {
			break
		}

		s.commands++
		if err := s.dispatch(cmd); err != nil {
			s.log.Warn().Err(err).Str("command", cmd.Kind.String()).Msg("command failed")
			s.beginClose(ReasonWriteError)
		}
	}

	return s.teardown()
}

// Close stops the session from outside its read loop, for example on server
// shutdown. The read loop observes the closed transport and tears down.
func (s *Session) Close(reason string) {
	s.beginClose(reason)
	_ = s.conn.Close()
}

func (s *Session) handleReadError(err error) {
	var argErr *ArgumentError
	switch {
	case errors.As(err, &argErr):
		s.log.Debug().Err(err).Msg("command rejected")
		if sendErr := s.reply(ErrorEvent(argErr.Reply())); sendErr != nil {
			s.beginClose(ReasonWriteError)
		}
	case errors.Is(err, ErrMalformedFrame):
		s.log.Debug().Err(err).Msg("dropping malformed frame")
	case errors.Is(err, io.EOF):
		s.beginClose(ReasonEOF)
	case isTimeout(err):
		s.beginClose(ReasonTimeout)
	default:
		s.log.Debug().Err(err).Msg("read failed")
		s.beginClose(ReasonReadError)
	}
}

func (s *Session) dispatch(cmd Command) error {
	switch cmd.Kind {
	case CommandNick:
		if err := s.reg.SetNick(s.conn, cmd.Nickname); err != nil {
			return err
		}
		s.log.Info().Str("nickname", cmd.Nickname).Msg("nick set")
		return s.reply(NickSet(cmd.Nickname))

	case CommandJoin:
		if _, err := s.reg.Join(s.conn, cmd.Channel); err != nil {
			return err
		}
		s.log.Info().Str("channel", cmd.Channel).Msg("joined channel")
		s.broadcast(cmd.Channel, Joined(cmd.Channel))
		return nil

	case CommandLeave:
		if cmd.Channel == "" {
			left := s.reg.LeaveAll(s.conn)
			for _, name := range left {
				s.broadcast(name, Left(name))
			}
			s.log.Info().Strs("channels", left).Msg("left all channels")
			return nil
		}
		if s.reg.Leave(s.conn, cmd.Channel) {
			s.broadcast(cmd.Channel, Left(cmd.Channel))
			s.log.Info().Str("channel", cmd.Channel).Msg("left channel")
		}
		return nil

	case CommandList:
		return s.reply(ChannelList(s.reg.Channels()))

	case CommandMessage:
		nickname := s.reg.Nick(s.conn)
		channels := s.reg.ChannelsOf(s.conn)
		if len(channels) == 0 {
			s.log.Debug().Msg("message outside any channel dropped")
			return nil
		}
		for _, name := range channels {
			s.broadcast(name, MessageEvent(Message{Channel: name, From: nickname, Text: cmd.Text}))
		}
		s.log.Info().Str("nickname", nickname).Strs("channels", channels).Int("bytes", len(cmd.Text)).Msg("message sent")
		return nil

	case CommandQuit:
		s.beginClose(ReasonQuit)
		// goodbye is the last frame the connection ever receives.
		frame, err := s.codec.EncodeEvent(Goodbye())
		if err != nil {
			return fmt.Errorf("encode %s: %w", EventGoodbye, err)
		}
		if err := s.conn.SendFinal(frame); err != nil {
			return fmt.Errorf("send %s: %w", EventGoodbye, err)
		}
		return nil

	default:
		s.log.Warn().Str("command", cmd.Name).Msg("unknown command")
		return s.reply(ErrorEvent(MsgUnknownCommand))
	}
}

// reply writes an event to this session's own connection. Errors are fatal
// to the session.
func (s *Session) reply(ev Event) error {
	frame, err := s.codec.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.Kind, err)
	}
	if err := s.conn.Send(frame); err != nil {
		return fmt.Errorf("send %s: %w", ev.Kind, err)
	}
	return nil
}

func (s *Session) broadcast(channel string, ev Event) {
	frame, err := s.codec.EncodeEvent(ev)
	if err != nil {
		s.log.Error().Err(err).Str("event", ev.Kind.String()).Msg("encode broadcast")
		return
	}
	n := s.reg.Broadcast(channel, frame)
	s.log.Debug().Str("channel", channel).Str("event", ev.Kind.String()).Int("recipients", n).Msg("broadcast")
}

func (s *Session) beginClose(reason string) {
	if s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		s.reasonMu.Lock()
		s.reason = reason
		s.reasonMu.Unlock()
	}
}

// teardown closes the transport before purging the registry so that no
// broadcast reaches the connection once removal has begun.
func (s *Session) teardown() Summary {
	s.beginClose(ReasonReadError)
	nickname := s.reg.Nick(s.conn)

	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close transport")
	}
	channels := s.reg.Remove(s.conn)
	s.state.Store(int32(StateClosed))

	s.reasonMu.Lock()
	reason := s.reason
	s.reasonMu.Unlock()

	summary := Summary{
		ID:         s.conn.ID(),
		RemoteAddr: s.conn.RemoteAddr(),
		Nickname:   nickname,
		Commands:   s.commands,
		Reason:     reason,
		Channels:   channels,
		StartedAt:  s.startedAt,
		EndedAt:    time.Now(),
	}
	s.log.Info().
		Str("reason", reason).
		Int("commands", summary.Commands).
		Strs("channels", channels).
		Msg("session closed")
	return summary
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
