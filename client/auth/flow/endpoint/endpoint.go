// Package endpoint runs the loopback HTTP listener that receives the OAuth
// authorization-code redirect.
package endpoint

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
)

// Server is a one-shot callback listener on an ephemeral localhost port.
type Server struct {
	Port     int
	listener net.Listener
	server   *http.Server

	mu       sync.Mutex
	authCode string
	authErr  string

	done chan struct{}
	once sync.Once
}

// New binds an ephemeral localhost port for the /callback redirect.
func New() (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind callback listener: %w", err)
	}
	ret := &Server{
		Port:     listener.Addr().(*net.TCPAddr).Port,
		listener: listener,
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", ret.handleCallback)
	ret.server = &http.Server{Handler: mux}
	return ret, nil
}

// Start serves until the first callback arrives or Shutdown is called.
func (s *Server) Start() {
	_ = s.server.Serve(s.listener)
}

// Wait blocks until the callback arrives or ctx expires.
func (s *Server) Wait(ctx context.Context) error {
	defer s.Shutdown()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authErr != "" {
		return fmt.Errorf("authorization failed: %s", s.authErr)
	}
	return nil
}

// AuthCode returns the received authorization code, empty until Wait returns.
func (s *Server) AuthCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCode
}

// Shutdown stops the listener.
func (s *Server) Shutdown() {
	_ = s.server.Close()
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.mu.Lock()
	s.authCode = query.Get("code")
	s.authErr = query.Get("error")
	s.mu.Unlock()
	if s.authErr != "" {
		http.Error(w, "Authorization failed, you can close this window.", http.StatusBadRequest)
	} else {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>Authorization complete, you can close this window.</body></html>")
	}
	s.once.Do(func() {
		close(s.done)
	})
}
