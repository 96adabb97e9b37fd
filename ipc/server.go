// Package ipc exposes a bridge.Facade to local clients over HTTP.
//
// Endpoints:
//
//	GET  /api/models  {"models": ["llama3.1:latest", ...]}
//	POST /api/chat    {"model": "...", "messages": [{"role": "user", "content": "..."}]}
//	                  -> application/x-ndjson: {"message": "..."} per fragment,
//	                     then {"done": true} or {"done": true, "error": "...", "kind": "..."}
//	GET  /api/health  {"status": "ok" | "busy" | "unreachable"}
//
// The listener is expected to be loopback TCP or a unix socket; there is no
// authentication.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"llamabridge/bridge"
	"llamabridge/config"
)

const (
	RequestIDHeader = "X-Request-Id"

	// maxBodyBytes caps a chat request; long histories fit comfortably.
	maxBodyBytes = 8 << 20

	shutdownTimeout = 5 * time.Second
)

type Server struct {
	facade *bridge.Facade
	mux    *http.ServeMux
}

func NewServer(facade *bridge.Facade) *Server {
	s := &Server{
		facade: facade,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/models", s.handleModels)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s
}

// Handler returns the routes wrapped with request-id tagging and logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		start := time.Now()
		s.mux.ServeHTTP(w, r.WithContext(bridge.WithRequestID(r.Context(), id)))

		if config.DebugLog != nil {
			config.DebugLog.Debug("request served", "request_id", id, "method", r.Method,
				"path", r.URL.Path, "elapsed", time.Since(start))
		}
	})
}

// Listen opens addr, which is either host:port or unix:///path/to.sock. A
// stale socket file left by a previous run is removed first.
func Listen(addr string) (net.Listener, error) {
	if path, ok := strings.CutPrefix(addr, "unix://"); ok {
		if path == "" {
			return nil, fmt.Errorf("invalid listen address %q: empty socket path", addr)
		}
		if info, err := os.Stat(path); err == nil && info.Mode()&os.ModeSocket != 0 {
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("failed to remove stale socket: %w", err)
			}
		}
		ln, err := net.Listen("unix", path)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		if err := os.Chmod(path, 0600); err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to restrict socket permissions: %w", err)
		}
		return ln, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve handles connections on ln until ctx ends, then drains in-flight
// requests for a few seconds before closing them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Warn("graceful shutdown timed out, closing connections", "error", err)
			}
			srv.Close()
		}
	}()

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	return err
}
