// internal/server/server.go
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deal-assistant/internal/common/config"
	"deal-assistant/internal/common/logger"
	"deal-assistant/internal/common/validation"
	"deal-assistant/internal/dealchat"
)

const transportHTTP = "http"

// TurnService runs one dialog turn.
type TurnService interface {
	Reply(ctx context.Context, transport, message string, draft *dealchat.Draft) (*dealchat.Reply, error)
}

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config  config.ServerConfig
	Service TurnService
	Logger  logger.Logger
	// Checks are pinged by /ready, keyed by name.
	Checks map[string]Pinger
}

type Server struct {
	cfg        config.ServerConfig
	svc        TurnService
	logger     logger.Logger
	checks     map[string]Pinger
	validator  *validation.Validator
	httpServer *http.Server
}

func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	s := &Server{
		cfg:       opts.Config,
		svc:       opts.Service,
		logger:    log.With(map[string]interface{}{"component": "http"}),
		checks:    opts.Checks,
		validator: validation.MustValidator(dealChatRequestSchema),
	}
	s.httpServer = &http.Server{
		Addr:         opts.Config.Address,
		Handler:      s.Handler(),
		ReadTimeout:  config.GetDuration(opts.Config.ReadTimeout),
		WriteTimeout: config.GetDuration(opts.Config.WriteTimeout),
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /deal-chat", s.handleDealChat)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = corsMiddleware(s.cfg.CORSOrigins)(h)
	h = loggingMiddleware(s.logger)(h)
	h = requestIDMiddleware(h)
	h = recoveryMiddleware(s.logger)(h)
	return h
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled, then drains in-flight
// requests within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", map[string]interface{}{"address": ln.Addr().String()})
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	timeout := config.GetDuration(s.cfg.ShutdownTimeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("HTTP server shutting down", nil)
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}
