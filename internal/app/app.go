package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/config"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/store"
	"github.com/vovakirdan/chanchat/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chanchat/internal/transport/http"
	"github.com/vovakirdan/chanchat/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	chat     *tcp.Server
	chatLn   net.Listener
	status   *transporthttp.Server
	statusLn net.Listener

	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application and binds its listeners, so address errors
// surface before Run.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var st store.Store = store.Nop{}
	if cfg.JournalPath != "" {
		journal, err := sqlite.New(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		logger.Info().Str("journal_path", cfg.JournalPath).Msg("session journal initialized")
		st = journal
	}

	reg := core.NewRegistry(logger)
	gate := admission.New(cfg.MaxSessions)

	a := &App{
		chat:            tcp.NewServer(reg, gate, st, cfg, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	a.chatLn = ln

	if cfg.StatusAddr != "" {
		statusLn, err := net.Listen("tcp", cfg.StatusAddr)
		if err != nil {
			_ = ln.Close()
			a.cleanup()
			return nil, fmt.Errorf("listen %s: %w", cfg.StatusAddr, err)
		}
		a.statusLn = statusLn
		a.status = transporthttp.NewServer(reg, gate, st, cfg, logger)
	}

	return a, nil
}

// ChatAddr returns the bound TCP chat address.
func (a *App) ChatAddr() net.Addr {
	return a.chatLn.Addr()
}

// StatusAddr returns the bound status address, or nil when the status server
// is disabled.
func (a *App) StatusAddr() net.Addr {
	if a.statusLn == nil {
		return nil
	}
	return a.statusLn.Addr()
}

// Run serves until ctx is cancelled or a listener fails, then shuts every
// listener down and closes the journal.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.chat.Serve(gctx, a.chatLn)
	})

	if a.status != nil {
		g.Go(func() error {
			return a.status.Serve(a.statusLn)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down status server")
			return a.status.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// cleanup closes the journal.
func (a *App) cleanup() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close journal")
	}
}
