package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"prdash/internal/fanout"
	"prdash/internal/loader"
	"prdash/internal/snapshot"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

type Reloader interface {
	Reload(ctx context.Context) (*loader.Stats, error)
}

type Options struct {
	Addr        string
	WebhookPath string
	SocketPath  string
	Hub         *fanout.Hub
	Cache       *snapshot.Cache
	Reloader    Reloader
	Logger      zerolog.Logger
}

type Server struct {
	srv      *http.Server
	hub      *fanout.Hub
	shutdown chan struct{}
	once     sync.Once
	log      zerolog.Logger
}

func New(o *Options) *Server {
	shutdown := make(chan struct{})

	return &Server{
		srv: &http.Server{
			Addr:              o.Addr,
			Handler:           newHandler(o, shutdown),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		hub:      o.Hub,
		shutdown: shutdown,
		log:      o.Logger,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.srv.Addr)
	}

	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down http server")
		ctxShut, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Websocket viewers are hijacked connections Shutdown does not wait for.
		s.hub.Close()
		s.once.Do(func() { close(s.shutdown) })

		return s.srv.Shutdown(ctxShut)
	case err := <-errCh:
		return err
	}
}
