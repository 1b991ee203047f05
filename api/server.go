package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

const readHeaderTimeout = 5 * time.Second

// Server wraps http.Server with the configured timeouts and a context-driven
// graceful shutdown.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logg            *logger.Logger
}

func NewServer(cfg config.AppConfig, handler http.Handler, logg *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logg:            logg,
	}
}

func (s *Server) Addr() string {
	return s.srv.Addr
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
