// Package server provides the local HTTP diagnostics and control
// endpoint: live pipeline counters and runtime configuration updates,
// served on localhost only.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iptsd-go/iptsd/internal/config"
	"github.com/iptsd-go/iptsd/internal/device"
)

// Server serves the diagnostics API on localhost.
type Server struct {
	Log zerolog.Logger

	httpServer *http.Server
	listener   net.Listener

	deviceMgr *device.Manager
	cfg       *config.Config
	version   string
}

// New creates a diagnostics server.
func New(deviceMgr *device.Manager, cfg *config.Config, version string) *Server {
	return &Server{
		Log:       log.Logger,
		deviceMgr: deviceMgr,
		cfg:       cfg,
		version:   version,
	}
}

// Start begins serving on addr ("127.0.0.1:0" picks a random localhost
// port). Returns the bound URL.
func (s *Server) Start(addr string) (string, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/config", s.handleConfig)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Log.Error().Err(err).Msg("diagnostics server error")
		}
	}()

	url := fmt.Sprintf("http://%s", ln.Addr().String())
	s.Log.Info().Str("url", url).Msg("diagnostics server listening")
	return url, nil
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// URL returns the server's URL, or an empty string if not started.
func (s *Server) URL() string {
	if s.listener == nil {
		return ""
	}
	return fmt.Sprintf("http://%s", s.listener.Addr().String())
}
