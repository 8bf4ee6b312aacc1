package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/trainbook/internal/logging"
	"github.com/dmitrijs2005/trainbook/internal/server/services"
	"github.com/dmitrijs2005/trainbook/internal/server/session"
	"github.com/dmitrijs2005/trainbook/internal/transport"
)

// Server accepts connections and runs one session per connection until the
// context is cancelled. Connections from other listeners (WebSocket) join
// the same pipeline through ServeConn.
type Server struct {
	address  string
	registry *session.Registry
	sessions *services.SessionService
	logger   logging.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewServer(address string, registry *session.Registry, sessions *services.SessionService, logger logging.Logger) *Server {
	return &Server{
		address:  address,
		registry: registry,
		sessions: sessions,
		logger:   logger.With("module", "server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then closes every active session
// and waits for their goroutines to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info(ctx, "Starting server", "address", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	err := s.acceptLoop(ctx, ln)

	s.shutdown(ctx)
	return err
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 0

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			wait := bo.NextBackOff()
			s.logger.Warn(ctx, "accept failed", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		go s.ServeConn(ctx, transport.NewStreamConn(conn))
	}
}

// ServeConn registers conn, runs its session and tears it down. It blocks
// until the session ends. After shutdown has begun conn is closed at once.
func (s *Server) ServeConn(ctx context.Context, conn transport.Conn) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	sess, err := s.registry.Register(conn)
	if err != nil {
		_ = conn.Close()
		return
	}

	s.logger.Info(ctx, "new connection", "conn_id", sess.ID, "remote", sess.RemoteAddr)

	_ = s.sessions.Serve(ctx, sess)

	s.registry.Deregister(sess.ID)
	_ = conn.Close()

	s.logger.Info(ctx, "connection ended", "conn_id", sess.ID, "remote", sess.RemoteAddr)
}

func (s *Server) shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	n := s.registry.CloseAll()
	s.logger.Info(ctx, "Stopping server...", "closed_sessions", n)
	s.wg.Wait()
}
