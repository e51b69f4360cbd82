// internal/server/server.go
package server

import (
	"context"
	"net/http"
	"time"

	"fitgenius-bot/pkg/logger"
)

type Server struct {
	server *http.Server
	logger *logger.Logger
}

// NewServer serves /health and, when stripeWebhook is non-nil, /webhook/stripe.
func NewServer(port string, stripeWebhook http.Handler, logger *logger.Logger) *Server {
	mux := http.NewServeMux()

	if stripeWebhook != nil {
		mux.Handle("/webhook/stripe", stripeWebhook)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		server: httpServer,
		logger: logger,
	}
}

// Handler exposes the routes for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Infow("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}
