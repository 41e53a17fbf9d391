package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/davbaghdasaryann/ehvm2/internal/app/system"
	"github.com/davbaghdasaryann/ehvm2/internal/config"
	"github.com/davbaghdasaryann/ehvm2/pkg/logger"
)

var _ system.Service = (*Server)(nil)

// Server is the lifecycle-managed HTTP listener.
type Server struct {
	log *logger.Logger

	mu      sync.Mutex
	srv     *http.Server
	running bool
}

// NewServer wraps the handler in an HTTP server configured from cfg.
func NewServer(cfg config.ServerConfig, h http.Handler, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{
		log: log,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      h,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

func (s *Server) Name() string { return "http-server" }

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true

	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server exited")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	return s.srv.Shutdown(ctx)
}
