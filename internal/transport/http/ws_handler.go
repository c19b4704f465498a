package http

import (
	"context"
	"fmt"
	"io"
	stdhttp "net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/proto"
	"github.com/vovakirdan/chanchat/internal/store"
	"github.com/vovakirdan/chanchat/internal/transport"
	"github.com/vovakirdan/chanchat/internal/utils"
)

// WSHandler upgrades HTTP connections and runs a core.Session on each one.
// One WebSocket text message carries one JSON frame.
type WSHandler struct {
	reg           *core.Registry
	gate          *admission.Gate
	journal       store.Store
	writeTimeout  time.Duration
	maxFrameBytes int
	log           *zerolog.Logger

	mu       sync.Mutex
	sessions map[*core.Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(reg *core.Registry, gate *admission.Gate, journal store.Store, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		reg:           reg,
		gate:          gate,
		journal:       journal,
		writeTimeout:  cfg.WriteTimeout,
		maxFrameBytes: cfg.MaxFrameBytes,
		log:           logger,
		sessions:      make(map[*core.Session]struct{}),
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer c.CloseNow()

	remote := r.RemoteAddr
	h.log.Info().Str("remote_addr", remote).Msg("ws client connected")

	if !h.gate.TryEnter() {
		h.reject(r.Context(), c, remote)
		return
	}
	defer h.gate.Leave()

	h.wg.Add(1)
	defer h.wg.Done()

	if h.maxFrameBytes > 0 {
		c.SetReadLimit(int64(h.maxFrameBytes))
	}
	conn := newWSConn(utils.NewID(), remote, c, h.writeTimeout)
	codec := &wsCodec{ctx: r.Context(), c: c}
	session := core.NewSession(h.reg, conn, codec, h.log)

	if !h.track(session) {
		session.Close(core.ReasonShutdown)
	}
	summary := session.Run()
	h.untrack(session)

	transport.RecordSession(h.journal, store.TransportWebSocket, summary, h.log)
}

func (h *WSHandler) reject(ctx context.Context, c *websocket.Conn, remote string) {
	h.log.Warn().Str("remote_addr", remote).Msg("ws connection rejected: server full")

	if frame, err := proto.EncodeEvent(core.ErrorEvent(core.MsgServerFull)); err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		_ = c.Write(writeCtx, websocket.MessageText, frame)
		cancel()
	}
	_ = c.Close(websocket.StatusTryAgainLater, core.MsgServerFull)

	transport.RecordRejection(h.journal, store.TransportWebSocket, remote, h.log)
}

// CloseAll closes every live WebSocket session. Sessions started afterwards
// are closed immediately.
func (h *WSHandler) CloseAll() {
	h.mu.Lock()
	h.closing = true
	sessions := make([]*core.Session, 0, len(h.sessions))
	for session := range h.sessions {
		sessions = append(sessions, session)
	}
	h.mu.Unlock()

	// Each close runs the closing handshake, so they run concurrently.
	for _, session := range sessions {
		go session.Close(core.ReasonShutdown)
	}
}

// Wait blocks until every admitted WebSocket session has finished or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for ws sessions: %w", ctx.Err())
	}
}

func (h *WSHandler) track(session *core.Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[session] = struct{}{}
	return true
}

func (h *WSHandler) untrack(session *core.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, session)
}

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	id           string
	remote       string
	c            *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	sealed bool
	closed atomic.Bool
}

func newWSConn(id, remote string, c *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{id: id, remote: remote, c: c, writeTimeout: writeTimeout}
}

func (w *wsConn) ID() string {
	return w.id
}

func (w *wsConn) RemoteAddr() string {
	return w.remote
}

// Send writes one frame as a text message. A failed write closes the
// connection.
func (w *wsConn) Send(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(frame)
}

// SendFinal writes frame and refuses every later Send.
func (w *wsConn) SendFinal(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.writeLocked(frame)
	w.sealed = true
	return err
}

func (w *wsConn) writeLocked(frame []byte) error {
	if w.sealed || w.closed.Load() {
		return core.ErrConnClosed
	}
	ctx := context.Background()
	if w.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.writeTimeout)
		defer cancel()
	}
	if err := w.c.Write(ctx, websocket.MessageText, frame); err != nil {
		if w.closed.CompareAndSwap(false, true) {
			_ = w.c.CloseNow()
		}
		return fmt.Errorf("ws write: %w", err)
	}
	return nil
}

// Close performs the closing handshake once and waits out an in-flight write.
func (w *wsConn) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := w.c.Close(websocket.StatusNormalClosure, "")
	w.mu.Lock()
	w.mu.Unlock() //nolint:staticcheck // waits out an in-flight write
	if err != nil {
		return fmt.Errorf("ws close: %w", err)
	}
	return nil
}

// wsCodec reads one command per text message.
type wsCodec struct {
	ctx context.Context
	c   *websocket.Conn
}

func (d *wsCodec) ReadCommand() (core.Command, error) {
	typ, data, err := d.c.Read(d.ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return core.Command{}, io.EOF
		}
		return core.Command{}, err
	}
	if typ != websocket.MessageText {
		return core.Command{}, fmt.Errorf("%w: binary message", core.ErrMalformedFrame)
	}
	return proto.DecodeCommand(data)
}

func (d *wsCodec) EncodeEvent(ev core.Event) ([]byte, error) {
	return proto.EncodeEvent(ev)
}
