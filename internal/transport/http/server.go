package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/store"
)

const readHeaderTimeout = 5 * time.Second

// Server is the status HTTP server. Besides the JSON endpoints it carries the
// /ws chat transport, which shares the registry and admission gate with the
// TCP listener.
type Server struct {
	http *stdhttp.Server
	ws   *WSHandler
	log  *zerolog.Logger
}

// NewServer builds the status server with its routes. journal may be nil.
func NewServer(reg *core.Registry, gate *admission.Gate, journal store.Store, cfg config.Config, logger *zerolog.Logger) *Server {
	if journal == nil {
		journal = store.Nop{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	ws := NewWSHandler(reg, gate, journal, cfg, logger)
	status := NewStatusHandlers(reg, gate, journal, logger)

	router.GET("/health", healthHandler)

	api := router.Group("/api")
	{
		api.GET("/channels", status.Channels)
		api.GET("/sessions", status.Sessions)
	}

	// /ws bypasses gin so the upgrade can hijack the raw connection.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &Server{
		http: &stdhttp.Server{
			Addr:              cfg.StatusAddr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ws:  ws,
		log: logger,
	}
}

// Handler exposes the root handler, mainly for httptest.
func (s *Server) Handler() stdhttp.Handler {
	return s.http.Handler
}

// Serve accepts HTTP connections on ln until Shutdown is called or the
// listener fails.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("status server started")
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes live WebSocket sessions and waits
// for them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.ws.CloseAll()
	if waitErr := s.ws.Wait(ctx); err == nil {
		err = waitErr
	}
	return err
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
