// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
)

// HTTPServer is the subset of *http.Server the service drives.
type HTTPServer interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServerService binds addr, serves until the context is canceled, then
// shuts the server down within shutdownTimeout. Binding happens inside Serve
// so a port conflict fails the service instead of a background goroutine.
type HTTPServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
	name            string

	listen    func(network, address string) (net.Listener, error)
	bound     atomic.Value // string
	listening chan struct{}
	once      sync.Once
}

// NewHTTPServerService wraps server. An addr with port 0 binds an ephemeral
// port; Addr reports it once Listening is closed.
func NewHTTPServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
		listen:          net.Listen,
		listening:       make(chan struct{}),
	}
}

// Addr returns the bound address, or "" before the first successful bind.
func (h *HTTPServerService) Addr() string {
	s, _ := h.bound.Load().(string)
	return s
}

// Listening is closed after the first successful bind.
func (h *HTTPServerService) Listening() <-chan struct{} { return h.listening }

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	ln, err := h.listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("http server listen on %s: %w", h.addr, err)
	}
	h.bound.Store(ln.Addr().String())
	h.once.Do(func() { close(h.listening) })
	logging.Info().Str("component", h.name).Str("addr", ln.Addr().String()).Msg("http server listening")

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Str("component", h.name).Msg("http server stopped")
		return ctx.Err()
	}
}

// String implements fmt.Stringer.
func (h *HTTPServerService) String() string { return h.name }
