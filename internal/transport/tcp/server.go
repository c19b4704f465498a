package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
	"github.com/vovakirdan/chanchat/internal/store"
	"github.com/vovakirdan/chanchat/internal/transport"
	"github.com/vovakirdan/chanchat/internal/utils"
)

// Server accepts TCP connections and runs one core.Session per connection.
type Server struct {
	addr          string
	readTimeout   time.Duration
	writeTimeout  time.Duration
	maxFrameBytes int

	reg     *core.Registry
	gate    *admission.Gate
	journal store.Store
	log     *zerolog.Logger

	mu       sync.Mutex
	sessions map[*core.Session]struct{}
	wg       sync.WaitGroup
}

// NewServer builds a TCP chat server. journal may be nil.
func NewServer(reg *core.Registry, gate *admission.Gate, journal store.Store, cfg config.Config, logger *zerolog.Logger) *Server {
	if journal == nil {
		journal = store.Nop{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{
		addr:          cfg.Addr,
		readTimeout:   cfg.ReadTimeout,
		writeTimeout:  cfg.WriteTimeout,
		maxFrameBytes: cfg.MaxFrameBytes,
		reg:           reg,
		gate:          gate,
		journal:       journal,
		log:           logger,
		sessions:      make(map[*core.Session]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done, then closes the
// listener, closes every live session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Int("max_sessions", s.gate.Limit()).Msg("chat listener started")

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	var serveErr error
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.log.Warn().Err(err).Msg("accept timeout, retrying")
				time.Sleep(5 * time.Millisecond)
				continue
			}
			serveErr = fmt.Errorf("accept: %w", err)
			break
		}

		s.log.Info().Str("remote_addr", raw.RemoteAddr().String()).Msg("client connected")

		// Admission is decided here, in accept order.
		admitted := s.gate.TryEnter()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if !admitted {
				s.reject(raw)
				return
			}
			defer s.gate.Leave()
			s.handle(raw)
		}()
	}

	_ = ln.Close()
	s.closeSessions()
	s.wg.Wait()
	s.log.Info().Msg("chat listener closed")
	return serveErr
}

func (s *Server) handle(raw net.Conn) {
	conn := newConn(utils.NewID(), raw, s.readTimeout, s.writeTimeout)
	codec := proto.NewStreamCodec(conn, s.maxFrameBytes)
	session := core.NewSession(s.reg, conn, codec, s.log)

	if !s.track(session) {
		session.Close(core.ReasonShutdown)
	}
	summary := session.Run()
	s.untrack(session)

	transport.RecordSession(s.journal, store.TransportTCP, summary, s.log)
}

// reject tells the client the server is full and closes the connection.
func (s *Server) reject(raw net.Conn) {
	remote := raw.RemoteAddr().String()
	s.log.Warn().Str("remote_addr", remote).Msg("connection rejected: server full")

	frame, err := proto.EncodeEvent(core.ErrorEvent(core.MsgServerFull))
	if err == nil {
		if s.writeTimeout > 0 {
			_ = raw.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		}
		_, _ = raw.Write(proto.AppendFrame(nil, frame))
	}
	_ = raw.Close()

	transport.RecordRejection(s.journal, store.TransportTCP, remote, s.log)
}

// track registers a running session; it returns false once shutdown has begun.
func (s *Server) track(session *core.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		return false
	}
	s.sessions[session] = struct{}{}
	return true
}

func (s *Server) untrack(session *core.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, session)
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = nil
	s.mu.Unlock()

	for session := range sessions {
		session.Close(core.ReasonShutdown)
	}
}
